package structure

import (
	"fmt"
	"strings"

	"tma-generator/models"
)

// MarksWarning is the soft policy failure raised when the marks do not total 100.
// It is confirmable: the caller decides whether to continue.
type MarksWarning struct {
	Total     int
	Questions int
}

func (w *MarksWarning) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total marks: %d (should be %d)\n\n", w.Total, ExpectedTotalMarks)
	fmt.Fprintf(&b, "You currently have %d question(s).\n", w.Questions)
	if w.Total < ExpectedTotalMarks {
		fmt.Fprintf(&b, "The marks are %d short of %d.\n\n", ExpectedTotalMarks-w.Total, ExpectedTotalMarks)
		b.WriteString("Possible issues:\n")
		b.WriteString("• Too few questions - consider adding more questions\n")
		b.WriteString("• Question marks are too low - consider increasing marks per question\n\n")
	} else {
		fmt.Fprintf(&b, "The marks are %d over %d.\n\n", w.Total-ExpectedTotalMarks, ExpectedTotalMarks)
		b.WriteString("Possible issues:\n")
		b.WriteString("• Too many questions - consider removing some questions\n")
		b.WriteString("• Question marks are too high - consider reducing marks per question\n\n")
	}
	b.WriteString("Do you want to continue generating files anyway?")
	return b.String()
}

// Cancellation is the message reported when the user declines to continue.
func (w *MarksWarning) Cancellation() string {
	return fmt.Sprintf("File generation cancelled. Please adjust your questions so the total marks equal %d (currently: %d).",
		ExpectedTotalMarks, w.Total)
}

// CheckMarksTotal returns a warning when the structure's marks do not total 100.
func CheckMarksTotal(s models.Structure) *MarksWarning {
	total := s.TotalMarks()
	if total == ExpectedTotalMarks {
		return nil
	}
	return &MarksWarning{Total: total, Questions: len(s.Questions)}
}
