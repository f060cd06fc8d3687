package tasks

import "fmt"

// Summary is the reporting structure every stage exposes for CLI and log
// consumption: a component name, its counters, and a truncated error sample.
type Summary struct {
	Component string         `json:"component"`
	Counts    map[string]int `json:"counts"`
	Errors    []string       `json:"errors,omitempty"`
}

// maxErrorSample bounds how many raw errors a summary carries.
const maxErrorSample = 5

// sampleErrors returns at most maxErrorSample errors, noting how many were dropped.
func sampleErrors(errs []string) []string {
	if len(errs) <= maxErrorSample {
		return errs
	}

	sample := make([]string, 0, maxErrorSample+1)
	sample = append(sample, errs[:maxErrorSample]...)
	sample = append(sample, fmt.Sprintf("... and %d more errors", len(errs)-maxErrorSample))
	return sample
}
