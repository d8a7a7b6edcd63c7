package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"tma-generator/ingestion"
	"tma-generator/models"
	"tma-generator/session"
)

var errGenerationFailed = errors.New("generation failed")

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the LaTeX files from a project file",
	Long: `Generate the LaTeX file tree from a project file.

The project file is YAML or JSON with "settings" and "questions" sections, or a CSV
list of questions with a marks,parts,subparts header. Settings missing from the file
fall back to the saved settings.`,
	Example: `  tmagen generate --project m208-tma02.yaml
  tmagen generate --project questions.csv --output ./tma02 --yes`,
	RunE: runGenerate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the saved settings and a question list to a project file",
	Example: `  tmagen export --project m208-tma02.yaml
  tmagen export --project m208-tma02.json --from questions.csv`,
	RunE: runExport,
}

func init() {
	generateCmd.Flags().StringP("project", "p", "", "project file (.yaml, .yml, .json or .csv)")
	generateCmd.Flags().StringP("output", "o", "", "output directory (overrides the project settings)")
	generateCmd.Flags().BoolP("yes", "y", false, "continue without asking when the marks do not total 100")
	_ = generateCmd.MarkFlagRequired("project")

	exportCmd.Flags().StringP("project", "p", "", "project file to write (.yaml, .yml or .json)")
	exportCmd.Flags().String("from", "", "read the question rows from this project or CSV file")
	_ = exportCmd.MarkFlagRequired("project")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("project")
	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")

	base, err := current.store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	project, err := ingestion.LoadProject(afero.NewOsFs(), path, base)
	if err != nil {
		return err
	}
	if output != "" {
		project.Settings.Output = output
	}

	sess := current.session()
	req := models.GenerateRequest{Settings: project.Settings, Questions: project.Questions, AcceptMarksMismatch: yes}
	result := sess.Generate(cmd.Context(), req)
	if result.NeedsConfirm && confirm(cmd.InOrStdin(), cmd.OutOrStdout(), result.Warning) {
		req.AcceptMarksMismatch = true
		result = sess.Generate(cmd.Context(), req)
	}

	for _, line := range session.Report(result) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	if !result.Success {
		return errGenerationFailed
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("project")
	from, _ := cmd.Flags().GetString("from")

	s, err := current.store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	project := models.ProjectFile{Settings: s, Questions: []models.RawQuestion{models.DefaultRawQuestion()}}
	fs := afero.NewOsFs()
	if from != "" {
		src, err := ingestion.LoadProject(fs, from, s)
		if err != nil {
			return err
		}
		project.Questions = src.Questions
	}
	if err := ingestion.SaveProject(fs, path, project, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Settings saved to %s\n", path)
	return nil
}

// confirm shows the marks warning and reads a yes/no answer.
func confirm(in io.Reader, out io.Writer, warning string) bool {
	fmt.Fprintln(out, warning)
	fmt.Fprint(out, "Continue generating files anyway? [y/N] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
