// Package generator lays out a validated assignment structure as a directory of
// LaTeX files: one root document, one structure file per question, and one
// editable answer file per part and subpart.
package generator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"tma-generator/models"
	"tma-generator/utils"
)

const (
	// TexExtension is appended to every generated file name. Include directives
	// reference files without it.
	TexExtension = ".tex"
	// QuestionPrefix starts every question, part and subpart file stem.
	QuestionPrefix = "q"
	// ResourcePattern selects the auxiliary style files copied into the output.
	ResourcePattern = "*.sty"
	// BackupTimestampLayout is the suffix given to a pre-existing output directory.
	BackupTimestampLayout = "2006_01_02_15_04_05"

	generatedBy = "% Generated by TMA LaTeX Generator"
	filePerm    = 0o644
	dirPerm     = 0o755
)

// ErrBackupExists is returned when the timestamped backup name for an existing
// output directory is itself taken. Nothing is renamed or overwritten.
var ErrBackupExists = errors.New("backup directory already exists")

// ErrUnsafeName is returned for a main file name that is not a single path element.
var ErrUnsafeName = errors.New("name must not contain '/', '\\' or '..'")

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// State is a step of a generation run.
type State string

const (
	StateDirectoryPreparing State = "directory-preparing"
	StateRootWriting        State = "root-writing"
	StateQuestionWriting    State = "question-writing"
	StateSubpartWriting     State = "subpart-writing"
	StateResourceCopying    State = "resource-copying"
	StateDone               State = "done"
)

// RunError reports the step at which a run aborted.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Output describes what a successful run produced.
type Output struct {
	Dir             string
	Files           []string // generated file names, in write order
	CopiedResources []string
}

// Generator writes the document tree for one set of settings.
type Generator struct {
	Fs          afero.Fs
	Settings    models.Settings
	ResourceDir string
	Now         func() time.Time
	Log         logrus.FieldLogger

	written []string
}

// New returns a Generator that copies resources from the current directory.
func New(fs afero.Fs, settings models.Settings) *Generator {
	return &Generator{
		Fs:          fs,
		Settings:    settings,
		ResourceDir: ".",
		Now:         time.Now,
		Log:         logrus.StandardLogger(),
	}
}

// QuestionStem is the file stem of question n, e.g. "q3".
func QuestionStem(n int) string {
	return QuestionPrefix + strconv.Itoa(n)
}

// PartStem is the file stem of a part, e.g. "q3b".
func PartStem(n int, part string) string {
	return QuestionStem(n) + part
}

// SubpartStem is the file stem of the i-th (zero-based) subpart of a part stem.
func SubpartStem(partStem string, i int) string {
	return partStem + "_" + strconv.Itoa(i)
}

// Plan splits a structure into the per-question sorted part lists and the
// part-stem → subpart-count mapping consumed by AppendSubparts.
func Plan(s models.Structure) ([][]string, map[string]int) {
	partsList := make([][]string, 0, len(s.Questions))
	counts := make(map[string]int)
	for _, q := range s.Questions {
		parts := make([]string, 0, len(q.Parts))
		for _, p := range q.Parts {
			parts = append(parts, p.ID)
			if len(p.Subparts) > 0 {
				counts[PartStem(q.Number, p.ID)] = len(p.Subparts)
			}
		}
		sort.Strings(parts)
		partsList = append(partsList, utils.UniqueStrings(parts))
	}
	return partsList, counts
}

// Run writes the whole tree for s into the configured output directory.
// The first failure aborts the run; files already written stay on disk.
func (g *Generator) Run(s models.Structure) (*Output, error) {
	g.written = nil
	log := g.Log.WithField("output", g.Settings.Output)
	partsList, counts := Plan(s)

	if !utils.IsSinglePathElement(g.Settings.Basename) {
		err := fmt.Errorf("Error creating main document: %q: %w", g.Settings.Basename, ErrUnsafeName)
		return nil, &RunError{State: StateRootWriting, Err: err}
	}

	log.WithField("state", StateDirectoryPreparing).Debug("preparing output directory")
	dir, err := g.EnsureOutputDirectory(g.Settings.Output)
	if err != nil {
		return nil, &RunError{State: StateDirectoryPreparing, Err: err}
	}
	log = log.WithField("dir", dir)

	log.WithField("state", StateRootWriting).Debug("writing root document")
	if err := g.WriteRootDocument(dir, g.Settings.Basename, len(s.Questions)); err != nil {
		return nil, &RunError{State: StateRootWriting, Err: err}
	}

	log.WithField("state", StateQuestionWriting).Debug("writing question files")
	for i, parts := range partsList {
		if err := g.WriteQuestionFiles(dir, g.Settings.Basename, i+1, parts); err != nil {
			return nil, &RunError{State: StateQuestionWriting, Err: err}
		}
	}

	if len(counts) > 0 {
		log.WithField("state", StateSubpartWriting).Debug("writing subpart files")
		if err := g.AppendSubparts(dir, g.Settings.Basename, counts); err != nil {
			return nil, &RunError{State: StateSubpartWriting, Err: err}
		}
	}

	log.WithField("state", StateResourceCopying).Debug("copying style files")
	copied, err := g.CopyAuxiliaryResources(dir)
	if err != nil {
		return nil, &RunError{State: StateResourceCopying, Err: err}
	}

	log.WithFields(logrus.Fields{"state": StateDone, "files": len(g.written), "resources": len(copied)}).Info("document tree written")
	return &Output{Dir: dir, Files: append([]string(nil), g.written...), CopiedResources: copied}, nil
}

// EnsureOutputDirectory creates path fresh. An existing entry at path is first
// renamed to "<path>.<YYYY_MM_DD_HH_MM_SS>" so earlier output is preserved.
func (g *Generator) EnsureOutputDirectory(path string) (string, error) {
	path = filepath.Clean(path)
	if _, err := g.Fs.Stat(path); err == nil {
		backup := path + "." + g.Now().Format(BackupTimestampLayout)
		if _, err := g.Fs.Stat(backup); err == nil {
			return "", fmt.Errorf("Error creating output directory: %s: %w", backup, ErrBackupExists)
		}
		g.Log.Infof("Directory %s exists, renaming to %s", path, backup)
		if err := g.Fs.Rename(path, backup); err != nil {
			return "", fmt.Errorf("Error creating output directory: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("Error creating output directory: %w", err)
	}
	if err := g.Fs.MkdirAll(path, dirPerm); err != nil {
		return "", fmt.Errorf("Error creating output directory: %w", err)
	}
	return path, nil
}

// WriteRootDocument writes <baseName>.tex, which pulls in q1..qN.
func (g *Generator) WriteRootDocument(dir, baseName string, questionCount int) error {
	stems := make([]string, questionCount)
	for i := range stems {
		stems[i] = QuestionStem(i + 1)
	}

	var b strings.Builder
	writeLines(&b,
		"% File: "+baseName+TexExtension,
		"% This is the MAIN document file - DO NOT EDIT!",
		"% This file is auto-generated and controls the overall document structure.",
		"% To add your answers, edit the individual question part files (e.g., q1a.tex, q1b.tex)",
		generatedBy,
		"",
		`\documentclass[a4paper,12pt]{article}`,
		`\usepackage{`+g.Settings.Style+`}`,
		`\myname{`+g.Settings.Name+`}`,
		`\mypin{`+g.Settings.PIN+`}`,
		`\mycourse{`+g.Settings.Course+`}`,
		`\mytma{`+g.Settings.TMARef+`}`,
		`\mycod{`+g.Settings.COD+`}`,
		"",
		`\includeonly{`+strings.Join(stems, ",")+`}`,
		"",
		`\begin{document}`,
	)
	for _, stem := range stems {
		writeLines(&b, "\t"+`\include{`+stem+`}`)
	}
	writeLines(&b, `\end{document}`)

	if err := g.writeFile(dir, baseName, b.String()); err != nil {
		return fmt.Errorf("Error creating main document: %w", err)
	}
	return nil
}

// WriteQuestionFiles writes the structure file q<index>.tex and one answer file
// per part.
func (g *Generator) WriteQuestionFiles(dir, baseName string, index int, parts []string) error {
	stem := QuestionStem(index)

	var b strings.Builder
	writeLines(&b,
		"% File: "+stem+TexExtension,
		"% This is a STRUCTURE file - DO NOT EDIT!",
		"% This file controls the layout of question parts.",
		fmt.Sprintf("%% To add your answers, edit the individual part files (%sa.tex, %sb.tex, etc.)", stem, stem),
		generatedBy,
		"",
		rootReference(baseName),
		`\begin{question}`,
	)
	for _, part := range parts {
		writeLines(&b,
			"\t"+`\qpart %(`+strings.ToLower(part)+`)`,
			"\t"+`\input{`+PartStem(index, part)+`}`,
		)
	}
	writeLines(&b, `\end{question}`)

	if err := g.writeFile(dir, stem, b.String()); err != nil {
		return fmt.Errorf("Error creating question files: %w", err)
	}

	for _, part := range parts {
		partStem := PartStem(index, part)
		content := answerFile(baseName, partStem,
			"% This is an ANSWER file - EDIT THIS!",
			fmt.Sprintf("%% Add your answer for Question %d part (%s) below.", index, part),
		)
		if err := g.writeFile(dir, partStem, content); err != nil {
			return fmt.Errorf("Error creating question files: %w", err)
		}
	}
	return nil
}

// AppendSubparts adds \qsubpart includes to each existing part answer file and
// writes the subpart placeholders <stem>_0 .. <stem>_<count-1>. Stems whose part
// file does not exist are skipped.
func (g *Generator) AppendSubparts(dir, baseName string, counts map[string]int) error {
	stems := make([]string, 0, len(counts))
	for stem := range counts {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	out := g.within(dir)
	for _, stem := range stems {
		count := counts[stem]
		partFile := stem + TexExtension
		exists, err := afero.Exists(out, partFile)
		if err != nil {
			return fmt.Errorf("Error creating subpart files: %w", err)
		}
		if !exists {
			g.Log.WithField("part", stem).Warn("part file missing, subparts skipped")
			continue
		}

		var b strings.Builder
		b.WriteString("\n")
		for i := 0; i < count; i++ {
			writeLines(&b, `\qsubpart`, `\input{`+SubpartStem(stem, i)+`}`)
		}
		if err := appendFile(out, partFile, b.String()); err != nil {
			return fmt.Errorf("Error creating subpart files: %w", err)
		}

		for i := 0; i < count; i++ {
			subStem := SubpartStem(stem, i)
			content := answerFile(baseName, subStem,
				"% This is a SUBPART ANSWER file - EDIT THIS!",
				fmt.Sprintf("%% Add your answer for subpart %d here.", i+1),
			)
			if err := g.writeFile(dir, subStem, content); err != nil {
				return fmt.Errorf("Error creating subpart files: %w", err)
			}
		}
	}
	return nil
}

// CopyAuxiliaryResources copies every style file in ResourceDir into dir,
// keeping permissions and modification times, and returns the copied names.
func (g *Generator) CopyAuxiliaryResources(dir string) ([]string, error) {
	matches, err := afero.Glob(g.Fs, filepath.Join(g.ResourceDir, ResourcePattern))
	if err != nil {
		return nil, fmt.Errorf("Error copying style files: %w", err)
	}
	sort.Strings(matches)

	out := g.within(dir)
	var copied []string
	for _, src := range matches {
		info, err := g.Fs.Stat(src)
		if err != nil {
			return copied, fmt.Errorf("Error copying style files: %w", err)
		}
		if info.IsDir() {
			continue
		}
		dst := filepath.Join(dir, info.Name())
		if filepath.Clean(src) == filepath.Clean(dst) {
			continue
		}
		if err := g.copyFile(out, src, info); err != nil {
			return copied, fmt.Errorf("Error copying style files: %w", err)
		}
		copied = append(copied, info.Name())
	}
	return copied, nil
}

// copyFile copies src into out under its own base name.
func (g *Generator) copyFile(out afero.Fs, src string, info os.FileInfo) error {
	in, err := g.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dst := info.Name()
	f, err := out.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := out.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return out.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (g *Generator) writeFile(dir, stem, content string) error {
	if err := afero.WriteFile(g.within(dir), stem+TexExtension, []byte(content), filePerm); err != nil {
		return err
	}
	g.written = append(g.written, stem+TexExtension)
	return nil
}

// within scopes file access to dir; names that resolve outside it fail.
func (g *Generator) within(dir string) afero.Fs {
	return afero.NewBasePathFs(g.Fs, dir)
}

func appendFile(fs afero.Fs, name, content string) error {
	f, err := fs.OpenFile(name, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ComposeExternalProjectName suggests a name for the online editor project,
// e.g. "MATH101 TMA 04 (2026)". The year comes from the cut-off date when it
// contains one.
func ComposeExternalProjectName(settings models.Settings) string {
	name := fmt.Sprintf("%s TMA %s", strings.ToUpper(settings.Course), utils.ZeroPad(settings.TMARef, 2))
	if m := yearPattern.FindStringSubmatch(strings.TrimSpace(settings.COD)); m != nil {
		name += " (" + m[1] + ")"
	}
	return name
}

func rootReference(baseName string) string {
	return "% !TeX root = ./" + baseName + TexExtension
}

func answerFile(baseName, stem, kind, prompt string) string {
	var b strings.Builder
	writeLines(&b,
		"% File: "+stem+TexExtension,
		kind,
		prompt,
		"% You can use LaTeX commands, equations, figures, etc.",
		generatedBy,
		"",
		rootReference(baseName),
		"",
		"% Add your answer here:",
	)
	return b.String()
}

func writeLines(b *strings.Builder, lines ...string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
