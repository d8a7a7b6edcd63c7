package structure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tma-generator/models"
)

func TestParseSubpartSpec(t *testing.T) {
	spec := ParseSubpartSpec("p1:a,b;p2:c")
	assert.Equal(t, []string{"p1", "p2"}, spec.Parts())
	assert.Equal(t, []string{"a", "b"}, spec.Subparts("p1"))
	assert.Equal(t, []string{"c"}, spec.Subparts("p2"))
}

func TestParseSubpartSpecTrimsAndDropsEmpty(t *testing.T) {
	spec := ParseSubpartSpec(" a : ii , i,, ii ; c:1,2,3")
	assert.Equal(t, []string{"a", "c"}, spec.Parts())
	assert.Equal(t, []string{"ii", "i"}, spec.Subparts("a"))
	assert.Equal(t, []string{"1", "2", "3"}, spec.Subparts("c"))
}

func TestParseSubpartSpecSkipsClausesWithoutColon(t *testing.T) {
	tests := []string{"", "   ", "a,b", "a;b;c", ";;"}
	for _, input := range tests {
		spec := ParseSubpartSpec(input)
		assert.Equal(t, 0, spec.Len(), input)
	}

	spec := ParseSubpartSpec("junk;b:x")
	assert.Equal(t, []string{"b"}, spec.Parts())
}

func TestParseSubpartSpecSplitsOnFirstColon(t *testing.T) {
	spec := ParseSubpartSpec("a:i:x,ii")
	assert.Equal(t, []string{"i:x", "ii"}, spec.Subparts("a"))
}

func TestParseSubpartSpecEmptyClause(t *testing.T) {
	spec := ParseSubpartSpec("a:")
	assert.Equal(t, []string{"a"}, spec.Parts())
	assert.Empty(t, spec.Subparts("a"))
}

func TestLookupFoldsCase(t *testing.T) {
	spec := ParseSubpartSpec("A:i,ii")
	assert.Equal(t, []string{"i", "ii"}, spec.Lookup("a"))
	assert.Nil(t, spec.Lookup("b"))
}

func TestValidateStructureAcceptsValidInput(t *testing.T) {
	questions := []models.RawQuestion{
		{Marks: "40", Parts: "a,b", Subparts: "a:i,ii"},
		{Marks: "35", Parts: "A, b ,c"},
		{Marks: "", Parts: "a"},
	}
	require.NoError(t, ValidateStructure(questions))

	s, err := Build(questions)
	require.NoError(t, err)
	assert.Nil(t, CheckMarksTotal(s))
}

func TestValidateStructureErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    []models.RawQuestion
		question int
		contains string
	}{
		{"zero marks", []models.RawQuestion{{Marks: "0", Parts: "a,b"}}, 1, "must be a positive number"},
		{"negative marks", []models.RawQuestion{{Marks: "-5", Parts: "a"}}, 1, "must be a positive number"},
		{"non numeric marks", []models.RawQuestion{{Marks: "ten", Parts: "a"}}, 1, "valid number (got 'ten')"},
		{"no parts", []models.RawQuestion{{Marks: "10", Parts: " , "}}, 1, "No parts specified"},
		{"duplicate parts", []models.RawQuestion{{Parts: "a,a,b"}}, 1, "Duplicate parts found: a."},
		{"duplicate parts after case fold", []models.RawQuestion{{Parts: "a,A,b,B"}}, 1, "Duplicate parts found: a, b."},
		{"unknown subpart part", []models.RawQuestion{{Parts: "a,b", Subparts: "c:i,ii"}}, 1, "part 'c' which doesn't exist.\nAvailable parts: a, b"},
		{"empty subparts", []models.RawQuestion{{Parts: "a,b", Subparts: "a:i;b: , "}}, 1, "Part 'b' has no subparts specified"},
		{"part escaping directory", []models.RawQuestion{{Parts: "a/../../x"}}, 1, "Part 'a/../../x' cannot contain"},
		{"part with backslash", []models.RawQuestion{{Parts: `a,b\c`}}, 1, `Part 'b\c' cannot contain`},
		{"part with dot dot", []models.RawQuestion{{Parts: "a,.."}}, 1, "Part '..' cannot contain"},
		{"second question", []models.RawQuestion{{Parts: "a"}, {Marks: "x", Parts: "a"}}, 2, "valid number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStructure(tt.input)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.question, verr.Question)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateStructureRuleOrder(t *testing.T) {
	// unknown part is reported before the empty clause
	err := ValidateStructure([]models.RawQuestion{{Parts: "a", Subparts: "a:;z:i"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'z' which doesn't exist")
}

func TestValidateStructureNoQuestions(t *testing.T) {
	assert.ErrorIs(t, ValidateStructure(nil), ErrNoQuestions)
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestBuild(t *testing.T) {
	s, err := Build([]models.RawQuestion{
		{Marks: "100", Parts: "b,A", Subparts: "a:ii,i"},
	})
	require.NoError(t, err)
	require.Len(t, s.Questions, 1)

	q := s.Questions[0]
	assert.Equal(t, "Q1", q.ID)
	assert.Equal(t, 1, q.Number)
	assert.Equal(t, 100, q.Marks)
	assert.Equal(t, []models.Part{{ID: "b"}, {ID: "a", Subparts: []string{"ii", "i"}}}, q.Parts)
}

func TestSummary(t *testing.T) {
	s, err := Build([]models.RawQuestion{
		{Marks: "60", Parts: "b,a", Subparts: "a:ii,i"},
		{Marks: "40", Parts: "a"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Q1: 60 marks",
		"  (a)",
		"    (i)",
		"    (ii)",
		"  (b)",
		"Q2: 40 marks",
		"  (a)",
	}, Summary(s))
}

func TestCheckMarksTotal(t *testing.T) {
	short, err := Build([]models.RawQuestion{{Marks: "30", Parts: "a"}, {Marks: "", Parts: "a"}})
	require.NoError(t, err)
	w := CheckMarksTotal(short)
	require.NotNil(t, w)
	assert.Equal(t, 55, w.Total)
	assert.Contains(t, w.Error(), "45 short of 100")
	assert.Contains(t, w.Error(), "2 question(s)")
	assert.Equal(t, "File generation cancelled. Please adjust your questions so the total marks equal 100 (currently: 55).", w.Cancellation())

	over, err := Build([]models.RawQuestion{{Marks: "120", Parts: "a"}})
	require.NoError(t, err)
	w = CheckMarksTotal(over)
	require.NotNil(t, w)
	assert.Contains(t, w.Error(), "20 over 100")

	huge, err := Build([]models.RawQuestion{
		{Marks: "9223372036854775800", Parts: "a"},
		{Marks: "9223372036854775800", Parts: "a"},
	})
	require.NoError(t, err)
	w = CheckMarksTotal(huge)
	require.NotNil(t, w)
	assert.Positive(t, w.Total)
	assert.Contains(t, w.Error(), "over 100")
}
