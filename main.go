package main

import "tma-generator/cmd"

func main() {
	cmd.Execute()
}
