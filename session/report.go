package session

import (
	"fmt"
	"strings"

	"tma-generator/models"
)

// Report renders a result as the plain-text transcript shown after an action.
func Report(result models.GenerationResult) []string {
	var lines []string
	if len(result.Summary) > 0 {
		lines = append(lines, "Question Structure:")
		lines = append(lines, result.Summary...)
	}
	if !result.Success {
		if result.Warning != "" && result.Warning != result.Message {
			lines = append(lines, "", result.Warning)
		}
		return append(lines, "", result.Message)
	}

	if result.OutputDir != "" {
		lines = append(lines, fmt.Sprintf("Created directory: %s", result.OutputDir))
	}
	if len(result.CopiedResources) > 0 {
		lines = append(lines, fmt.Sprintf("Copied style files: %s", strings.Join(result.CopiedResources, ", ")))
	}
	lines = append(lines, result.Message)
	if result.OutputDir == "" {
		return lines
	}
	return append(lines,
		"",
		"=== OVERLEAF SETUP ===",
		"Suggested Overleaf project name:",
		"  "+result.ProjectName,
		"",
		"Next steps:",
		"1. Create new blank project in Overleaf",
		"2. Use the suggested name above",
		"3. Delete default main.tex in Overleaf",
		"4. Upload ALL files from output directory",
		"5. Compile and start editing!",
		"",
		"Generation completed successfully!",
	)
}
