// Package ingestion reads and writes project files: the saved settings together
// with the question rows, as YAML, JSON, or a CSV list of questions.
package ingestion

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"tma-generator/models"
)

// ProjectVersion is stamped on exported project files.
const ProjectVersion = "2.1"

// ErrInvalidProject is returned when a document lacks the settings or questions sections.
var ErrInvalidProject = errors.New("invalid settings file format")

// projectDocument mirrors models.ProjectFile but keeps settings as raw keys so
// they can be merged over the defaults.
type projectDocument struct {
	Settings  map[string]string    `json:"settings" yaml:"settings"`
	Questions []models.RawQuestion `json:"questions" yaml:"questions"`
	Exported  *time.Time           `json:"exported,omitempty" yaml:"exported,omitempty"`
	Version   string               `json:"version,omitempty" yaml:"version,omitempty"`
}

// LoadProject reads a project file. The format follows the extension: .yaml/.yml,
// .json, or .csv (questions only; settings are base).
func LoadProject(fs afero.Fs, path string, base models.Settings) (models.ProjectFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return models.ProjectFile{}, fmt.Errorf("failed to open project file %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		questions, err := ReadQuestionsCSV(f)
		if err != nil {
			return models.ProjectFile{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return models.ProjectFile{Settings: base, Questions: questions}, nil
	case ".json":
		return decodeProject(f, base, func(data []byte, doc *projectDocument) error { return json.Unmarshal(data, doc) })
	case ".yaml", ".yml":
		return decodeProject(f, base, func(data []byte, doc *projectDocument) error { return yaml.Unmarshal(data, doc) })
	default:
		return models.ProjectFile{}, fmt.Errorf("unsupported project file type %q", filepath.Ext(path))
	}
}

func decodeProject(r io.Reader, base models.Settings, unmarshal func([]byte, *projectDocument) error) (models.ProjectFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.ProjectFile{}, fmt.Errorf("failed to read project file: %w", err)
	}
	var doc projectDocument
	if err := unmarshal(data, &doc); err != nil {
		return models.ProjectFile{}, fmt.Errorf("failed to parse project file: %w", err)
	}
	if doc.Settings == nil || doc.Questions == nil {
		return models.ProjectFile{}, ErrInvalidProject
	}
	return models.ProjectFile{
		Settings:  models.MergeSettings(base, doc.Settings),
		Questions: doc.Questions,
		Exported:  doc.Exported,
		Version:   doc.Version,
	}, nil
}

// SaveProject writes settings and questions as YAML or JSON, depending on the extension.
func SaveProject(fs afero.Fs, path string, project models.ProjectFile, now time.Time) error {
	exported := now.UTC()
	doc := projectDocument{
		Settings:  project.Settings.ToMap(),
		Questions: project.Questions,
		Exported:  &exported,
		Version:   ProjectVersion,
	}
	if doc.Questions == nil {
		doc.Questions = []models.RawQuestion{}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("unsupported project file type %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode project file: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project file %s: %w", path, err)
	}
	return nil
}

// ReadQuestionsCSV reads question rows from CSV. The first row is a header naming
// the columns marks, parts and subparts in any order; only parts is required.
func ReadQuestionsCSV(r io.Reader) ([]models.RawQuestion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("insufficient rows: a header and at least one question row are required")
	}

	columns := map[string]int{"marks": -1, "parts": -1, "subparts": -1}
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("unknown column %q in header", name)
		}
		columns[name] = i
	}
	if columns["parts"] < 0 {
		return nil, errors.New("header must contain a parts column")
	}

	field := func(row []string, name string) string {
		i := columns[name]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var questions []models.RawQuestion
	for i, row := range rows[1:] {
		if len(row) > len(rows[0]) {
			return nil, fmt.Errorf("incorrect column count at line %d: expected at most %d, got %d", i+2, len(rows[0]), len(row))
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		questions = append(questions, models.RawQuestion{
			Marks:    field(row, "marks"),
			Parts:    field(row, "parts"),
			Subparts: field(row, "subparts"),
		})
	}
	return questions, nil
}
