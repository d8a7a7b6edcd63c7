// Package structure turns the raw question rows of the form into a validated
// models.Structure.
package structure

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tma-generator/models"
	"tma-generator/utils"
)

const (
	// DefaultMarks is used when the marks field is left empty.
	DefaultMarks = 25
	// ExpectedTotalMarks is the total the marks of all questions should add up to.
	ExpectedTotalMarks = 100

	subpartSyntax = "'part:sub1,sub2;part2:sub1,sub2'"
)

// ErrNoQuestions is returned when a request carries no question rows at all.
var ErrNoQuestions = errors.New("Please add at least one question.")

// ValidationError is a hard input error tied to one question.
type ValidationError struct {
	Question int
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Question %d: %s", e.Question, e.Message)
}

func invalid(question int, format string, args ...any) *ValidationError {
	return &ValidationError{Question: question, Message: fmt.Sprintf(format, args...)}
}

// SubpartSpec is the parsed form of "a:i,ii;c:1,2". Clause order and token order
// follow first occurrence.
type SubpartSpec struct {
	parts    []string
	subparts map[string][]string
}

// Parts returns the clause keys as written (trimmed, case preserved).
func (s *SubpartSpec) Parts() []string {
	return s.parts
}

// Subparts returns the tokens of the clause keyed exactly by part.
func (s *SubpartSpec) Subparts(part string) []string {
	return s.subparts[part]
}

// Len is the number of distinct clause keys.
func (s *SubpartSpec) Len() int {
	return len(s.parts)
}

// Lookup returns the tokens for part, matching clause keys case-insensitively.
// When several clauses fold to the same part the last one wins.
func (s *SubpartSpec) Lookup(part string) []string {
	var found []string
	for _, key := range s.parts {
		if strings.EqualFold(key, part) {
			found = s.subparts[key]
		}
	}
	return found
}

// ParseSubpartSpec parses a "part:sub1,sub2;part2:sub1" specification.
// Clauses without ':' are skipped; they are not an error.
func ParseSubpartSpec(text string) *SubpartSpec {
	spec := &SubpartSpec{subparts: make(map[string][]string)}
	if strings.TrimSpace(text) == "" {
		return spec
	}
	for _, clause := range strings.Split(text, ";") {
		part, rest, ok := strings.Cut(clause, ":")
		if !ok {
			continue
		}
		part = strings.TrimSpace(part)
		if _, seen := spec.subparts[part]; !seen {
			spec.parts = append(spec.parts, part)
		}
		spec.subparts[part] = utils.UniqueStrings(utils.SplitList(rest, ","))
	}
	return spec
}

// ParseMarks applies the marks rules: empty means DefaultMarks, anything else must
// be a positive integer.
func ParseMarks(question int, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultMarks, nil
	}
	marks, err := strconv.Atoi(text)
	if err != nil {
		return 0, invalid(question, "Marks must be a valid number (got '%s').", text)
	}
	if marks <= 0 {
		return 0, invalid(question, "Marks must be a positive number (got '%s').", text)
	}
	return marks, nil
}

// ParseParts splits the comma-separated part list and lowercases every entry.
func ParseParts(text string) []string {
	parts := utils.SplitList(text, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

// validateQuestion runs the per-question rules in order and returns the first failure.
func validateQuestion(question int, raw models.RawQuestion) (int, []string, *SubpartSpec, error) {
	marks, err := ParseMarks(question, raw.Marks)
	if err != nil {
		return 0, nil, nil, err
	}

	parts := ParseParts(raw.Parts)
	if len(parts) == 0 {
		return 0, nil, nil, invalid(question, "No parts specified. Please add at least one part (e.g., 'a,b,c,d').")
	}
	for _, p := range parts {
		if !utils.IsSinglePathElement(p) {
			return 0, nil, nil, invalid(question, "Part '%s' cannot contain '/', '\\' or '..'. Use letters or short tokens (e.g., 'a,b,c').", p)
		}
	}
	if dups := utils.Duplicates(parts); len(dups) > 0 {
		return 0, nil, nil, invalid(question, "Duplicate parts found: %s. Each part should be unique.", strings.Join(dups, ", "))
	}

	spec := ParseSubpartSpec(raw.Subparts)
	for _, part := range spec.Parts() {
		if !utils.ContainsString(parts, strings.ToLower(part)) {
			return 0, nil, nil, invalid(question,
				"Subpart references part '%s' which doesn't exist.\nAvailable parts: %s\nCheck your subparts format: %s",
				part, strings.Join(parts, ", "), subpartSyntax)
		}
	}
	for _, part := range spec.Parts() {
		if len(spec.Subparts(part)) == 0 {
			return 0, nil, nil, invalid(question,
				"Part '%s' has no subparts specified. Either remove '%s:' or add subparts like '%s:i,ii,iii'.",
				part, part, part)
		}
	}
	return marks, parts, spec, nil
}

// ValidateStructure checks every question in declaration order and returns the
// first hard error. A marks total other than 100 is not reported here; see
// CheckMarksTotal.
func ValidateStructure(questions []models.RawQuestion) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for i, raw := range questions {
		if _, _, _, err := validateQuestion(i+1, raw); err != nil {
			return err
		}
	}
	return nil
}

// Build validates the rows and returns the normalized structure.
func Build(questions []models.RawQuestion) (models.Structure, error) {
	if len(questions) == 0 {
		return models.Structure{}, ErrNoQuestions
	}
	s := models.Structure{Questions: make([]models.Question, 0, len(questions))}
	for i, raw := range questions {
		number := i + 1
		marks, parts, spec, err := validateQuestion(number, raw)
		if err != nil {
			return models.Structure{}, err
		}
		q := models.Question{ID: fmt.Sprintf("Q%d", number), Number: number, Marks: marks}
		for _, p := range parts {
			q.Parts = append(q.Parts, models.Part{ID: p, Subparts: spec.Lookup(p)})
		}
		s.Questions = append(s.Questions, q)
	}
	return s, nil
}

// Summary renders the structure as indented lines, parts and subparts sorted:
//
//	Q1: 100 marks
//	  (a)
//	    (i)
func Summary(s models.Structure) []string {
	var lines []string
	for _, q := range s.Questions {
		lines = append(lines, fmt.Sprintf("%s: %d marks", q.ID, q.Marks))
		parts := append([]models.Part(nil), q.Parts...)
		sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
		for _, p := range parts {
			lines = append(lines, fmt.Sprintf("  (%s)", p.ID))
			subparts := append([]string(nil), p.Subparts...)
			sort.Strings(subparts)
			for _, sp := range subparts {
				lines = append(lines, fmt.Sprintf("    (%s)", sp))
			}
		}
	}
	return lines
}
