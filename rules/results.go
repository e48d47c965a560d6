package rules

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Results is a multiset of Problems found by Validate.
type Results struct {
	problems []Problem
}

func (r *Results) add(p Problem) { r.problems = append(r.problems, NewProblem(p)) }

// Problems returns all Problems: violations first, then warnings, each in
// the order they were found.
func (r *Results) Problems() []Problem {
	return append(r.Violations(), r.Warnings()...)
}

// Violations returns Problems which are violations.
func (r *Results) Violations() []Problem {
	var out []Problem
	for _, p := range r.problems {
		if p.IsViolation() {
			out = append(out, p)
		}
	}
	return out
}

// Warnings returns Problems which are warnings.
func (r *Results) Warnings() []Problem {
	var out []Problem
	for _, p := range r.problems {
		if !p.IsViolation() {
			out = append(out, p)
		}
	}
	return out
}

// NumViolations is the number of violations.
func (r *Results) NumViolations() int { return len(r.Violations()) }

// NumProblems is the number of violations and warnings.
func (r *Results) NumProblems() int { return len(r.problems) }

// Find returns Problems of Kind |k|.
func (r *Results) Find(k Kind) []Problem {
	var out []Problem
	for _, p := range r.problems {
		if p.Kind == k {
			out = append(out, p)
		}
	}
	return out
}

// Contains returns true if an equal Problem was found.
func (r *Results) Contains(p Problem) bool {
	for _, o := range r.problems {
		if o == p {
			return true
		}
	}
	return false
}

// String renders Results for operator display.
func (r *Results) String() string {
	var b strings.Builder
	var v, w = r.Violations(), r.Warnings()

	fmt.Fprintf(&b, "Validation: %d violations, %d warnings\n", len(v), len(w))
	for _, p := range v {
		fmt.Fprintf(&b, "  violation %s\n", p)
	}
	for _, p := range w {
		fmt.Fprintf(&b, "  warning   %s\n", p)
	}
	return b.String()
}

// WriteTable writes Results to |w| as a table.
func (r *Results) WriteTable(w io.Writer) error {
	var table = tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Severity", "Kind", "Resource", "Description"}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
	for _, p := range r.Problems() {
		var severity = "warning"
		if p.IsViolation() {
			severity = "violation"
		}
		var desc = p.String()
		desc = desc[strings.Index(desc, ": ")+2:]

		if err := table.Append([]string{severity, p.Kind.String(), p.Resource(), desc}); err != nil {
			return err
		}
	}
	return table.Render()
}
