// Package testresults aggregates test run outcomes.
package testresults

import "fmt"

// Summary counts test outcomes. The zero value is the identity for Add.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add returns the component-wise sum of s and o.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Passed:  s.Passed + o.Passed,
		Failed:  s.Failed + o.Failed,
		Skipped: s.Skipped + o.Skipped,
	}
}

// Sum folds summaries with Add. Sum() is the zero Summary.
func Sum(summaries ...Summary) Summary {
	var total Summary
	for _, s := range summaries {
		total = total.Add(s)
	}
	return total
}

func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped", s.Passed, s.Failed, s.Skipped)
}
