package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalMarks(t *testing.T) {
	s := Structure{Questions: []Question{{Marks: 60}, {Marks: 40}}}
	assert.Equal(t, 100, s.TotalMarks())
	assert.Equal(t, 0, Structure{}.TotalMarks())
}

func TestTotalMarksDoesNotWrap(t *testing.T) {
	huge := math.MaxInt - 10
	s := Structure{Questions: []Question{{Marks: huge}, {Marks: huge}, {Marks: 5}}}
	assert.Equal(t, math.MaxInt, s.TotalMarks())
}
