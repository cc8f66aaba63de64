package jobmeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInProgress(t *testing.T) {
	md := NewInProgress("host:alice")

	assert.Equal(t, StatusInProgress, md.Status)
	assert.Equal(t, "host:alice", md.WorkerID)

	claimedAt, err := time.Parse(time.RFC3339, md.ClaimedAt)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, claimedAt.Location())
	assert.WithinDuration(t, time.Now().UTC(), claimedAt, 5*time.Second)
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	md := WorkerMetadata{
		Status:    StatusInProgress,
		ClaimedAt: "2026-08-29T10:00:00Z",
		WorkerID:  "host:bob",
	}

	text, err := md.Encode()
	require.NoError(t, err)

	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestParse_Unparsable(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"not json", "this is not json"},
		{"unknown status", `{"status":"completed","claimed_at":"x","worker_id":"w"}`},
		{"missing status", `{"claimed_at":"x","worker_id":"w"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparsable)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSuccessful.Terminal())
	assert.True(t, StatusFailure.Terminal())
	assert.False(t, Status("queued").Terminal())
}

func TestWithStatus_PreservesClaim(t *testing.T) {
	md := NewInProgress("host:carol")
	done := md.WithStatus(StatusSuccessful)

	assert.Equal(t, StatusSuccessful, done.Status)
	assert.Equal(t, md.ClaimedAt, done.ClaimedAt)
	assert.Equal(t, md.WorkerID, done.WorkerID)
	// Original record untouched.
	assert.Equal(t, StatusInProgress, md.Status)
}

func TestEncode_RejectsInvalidStatus(t *testing.T) {
	md := WorkerMetadata{Status: "bogus"}
	_, err := md.Encode()
	require.Error(t, err)
}

func TestWriteLocal(t *testing.T) {
	md := NewInProgress("host:dave")
	path := filepath.Join(t.TempDir(), "job-1", "worker-metadata.json")

	require.NoError(t, WriteLocal(path, md))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := Parse(string(data))
	require.NoError(t, err)
	assert.Equal(t, md, got)
}
