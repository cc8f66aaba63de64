package runner

import (
	"encoding/json"
	"fmt"

	"github.com/quarryhq/quarry/pkg/jobmeta"
)

// Result is the outcome of executing a job. The payload is opaque to the
// claim and report protocols; it is written verbatim to results.json.
type Result struct {
	Succeeded bool
	Payload   map[string]any
}

// Status maps the outcome to the terminal metadata status.
func (r Result) Status() jobmeta.Status {
	if r.Succeeded {
		return jobmeta.StatusSuccessful
	}
	return jobmeta.StatusFailure
}

// Encode renders the payload as indented JSON.
func (r Result) Encode() (string, error) {
	b, err := json.MarshalIndent(r.Payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
