package models

import (
	"fmt"
	"math"
	"time"
)

// Settings keys as they appear in the persisted key-value document.
const (
	KeyCourse   = "course"
	KeyTMARef   = "tma_ref"
	KeyCOD      = "cod"
	KeyName     = "name"
	KeyPIN      = "pin"
	KeyStyle    = "style"
	KeyOutput   = "output"
	KeyBasename = "basename"
)

// SettingsKeys lists every persisted key in a stable order.
var SettingsKeys = []string{KeyCourse, KeyTMARef, KeyCOD, KeyName, KeyPIN, KeyStyle, KeyOutput, KeyBasename}

// Settings holds the identity and naming fields used to compose generated files.
type Settings struct {
	Course   string `json:"course" yaml:"course" form:"course"`
	TMARef   string `json:"tma_ref" yaml:"tma_ref" form:"tma_ref"`
	COD      string `json:"cod" yaml:"cod" form:"cod"`
	Name     string `json:"name" yaml:"name" form:"name"`
	PIN      string `json:"pin" yaml:"pin" form:"pin"`
	Style    string `json:"style" yaml:"style" form:"style"`
	Output   string `json:"output" yaml:"output" form:"output"`
	Basename string `json:"basename" yaml:"basename" form:"basename"`
}

// DefaultSettings returns the built-in settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		Course:   "MATH101",
		TMARef:   "04",
		COD:      "21 January 2026",
		Name:     "Alex Taylor",
		PIN:      "S1234567",
		Style:    "tma",
		Output:   "./output",
		Basename: "TMA",
	}
}

// ToMap flattens settings into the persisted key-value form.
func (s Settings) ToMap() map[string]string {
	return map[string]string{
		KeyCourse:   s.Course,
		KeyTMARef:   s.TMARef,
		KeyCOD:      s.COD,
		KeyName:     s.Name,
		KeyPIN:      s.PIN,
		KeyStyle:    s.Style,
		KeyOutput:   s.Output,
		KeyBasename: s.Basename,
	}
}

// Set assigns a single key. Unknown keys are rejected.
func (s *Settings) Set(key, value string) error {
	switch key {
	case KeyCourse:
		s.Course = value
	case KeyTMARef:
		s.TMARef = value
	case KeyCOD:
		s.COD = value
	case KeyName:
		s.Name = value
	case KeyPIN:
		s.PIN = value
	case KeyStyle:
		s.Style = value
	case KeyOutput:
		s.Output = value
	case KeyBasename:
		s.Basename = value
	default:
		return fmt.Errorf("unknown settings key %q", key)
	}
	return nil
}

// MergeSettings overlays the known keys of values onto base. Unknown keys are ignored.
func MergeSettings(base Settings, values map[string]string) Settings {
	merged := base
	for key, value := range values {
		_ = merged.Set(key, value)
	}
	return merged
}

// RawQuestion is one question as typed into the form, before validation.
type RawQuestion struct {
	Marks    string `json:"marks" yaml:"marks"`
	Parts    string `json:"parts" yaml:"parts"`
	Subparts string `json:"subparts" yaml:"subparts"`
}

// DefaultRawQuestion is the row offered when a question is added.
func DefaultRawQuestion() RawQuestion {
	return RawQuestion{Marks: "25", Parts: "a,b,c,d"}
}

// Part struct represents one lettered part of a question
type Part struct {
	ID       string   `json:"id"`
	Subparts []string `json:"subparts,omitempty"` // first-occurrence order
}

// Question struct represents a validated question
type Question struct {
	ID     string `json:"id"` // Q1, Q2, ...
	Number int    `json:"number"`
	Marks  int    `json:"marks"`
	Parts  []Part `json:"parts"`
}

// Structure is the normalized assignment built for a single generation request.
type Structure struct {
	Questions []Question `json:"questions"`
}

// TotalMarks sums the marks of every question, saturating at math.MaxInt.
func (s Structure) TotalMarks() int {
	total := 0
	for _, q := range s.Questions {
		if q.Marks > 0 && total > math.MaxInt-q.Marks {
			return math.MaxInt
		}
		total += q.Marks
	}
	return total
}

// GenerateRequest is the payload of a generate or validate action.
type GenerateRequest struct {
	Settings            Settings      `json:"settings"`
	Questions           []RawQuestion `json:"questions"`
	AcceptMarksMismatch bool          `json:"accept_marks_mismatch"`
}

// GenerationResult is what the caller receives after a generation attempt.
type GenerationResult struct {
	RunID           string   `json:"run_id,omitempty"`
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	Warning         string   `json:"warning,omitempty"` // marks total warning
	NeedsConfirm    bool     `json:"needs_confirmation,omitempty"`
	Summary         []string `json:"summary,omitempty"`
	ProjectName     string   `json:"project_name,omitempty"`
	OutputDir       string   `json:"output_dir,omitempty"`
	Files           []string `json:"files,omitempty"`
	CopiedResources []string `json:"copied_resources,omitempty"`
	Settings        Settings `json:"-"`
}

// GenerationRun struct is one row of the generation history
type GenerationRun struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Course    string    `json:"course"`
	TMARef    string    `json:"tma_ref"`
	OutputDir string    `json:"output_dir"`
	Questions int       `json:"questions"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
}

// ProjectFile is the import/export document holding settings and question rows.
type ProjectFile struct {
	Settings  Settings      `json:"settings" yaml:"settings"`
	Questions []RawQuestion `json:"questions" yaml:"questions"`
	Exported  *time.Time    `json:"exported,omitempty" yaml:"exported,omitempty"`
	Version   string        `json:"version,omitempty" yaml:"version,omitempty"`
}
