// Package jobmeta defines the claim record written at
// `<job_id>/worker-metadata.json` and its status state machine.
package jobmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is the lifecycle state of a claimed job.
//
// NOTE: These values are persisted in worker-metadata.json and are part of
// the stable on-disk contract. "unclaimed" has no value: it is the absence
// of the record.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusSuccessful Status = "successful"
	StatusFailure    Status = "failure"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusSuccessful, StatusFailure:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailure
}

// ErrUnparsable indicates a claim record that exists but cannot be decoded
// or carries an unrecognized status. Callers must treat such a job as owned:
// only the absence of the record proves no one has begun it.
var ErrUnparsable = errors.New("unparsable worker metadata")

// WorkerMetadata is the claim record.
//
// claimed_at is stamped once at the in-progress transition and preserved
// through the terminal write.
type WorkerMetadata struct {
	Status    Status `json:"status"`
	ClaimedAt string `json:"claimed_at"`
	WorkerID  string `json:"worker_id"`
}

// NewInProgress builds the only record a worker may fabricate: an
// in-progress claim under its own identity, stamped now in UTC.
func NewInProgress(workerID string) WorkerMetadata {
	return WorkerMetadata{
		Status:    StatusInProgress,
		ClaimedAt: time.Now().UTC().Format(time.RFC3339),
		WorkerID:  workerID,
	}
}

// WithStatus returns a copy of m with only the status replaced.
func (m WorkerMetadata) WithStatus(status Status) WorkerMetadata {
	m.Status = status
	return m
}

// Encode renders the record as indented JSON.
func (m WorkerMetadata) Encode() (string, error) {
	if !m.Status.Valid() {
		return "", fmt.Errorf("encode worker metadata: invalid status %q", m.Status)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode worker metadata: %w", err)
	}
	return string(b), nil
}

// Parse decodes a claim record. Malformed JSON or an unrecognized status
// yields ErrUnparsable, a result distinct from the record being absent.
func Parse(text string) (WorkerMetadata, error) {
	var m WorkerMetadata
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return WorkerMetadata{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if !m.Status.Valid() {
		return WorkerMetadata{}, fmt.Errorf("%w: unknown status %q", ErrUnparsable, m.Status)
	}
	return m, nil
}

// WriteLocal persists the record into the local job mirror, creating parent
// directories as needed.
func WriteLocal(path string, m WorkerMetadata) error {
	text, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write local worker metadata: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write local worker metadata: %w", err)
	}
	return nil
}
