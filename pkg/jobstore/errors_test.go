package jobstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{
			name: "with key",
			err:  &StoreError{Op: "GetText", Backend: BackendS3, Bucket: "jobs", Key: "j1/worker-metadata.json", Err: ErrNotFound},
			want: "s3 GetText: jobs/j1/worker-metadata.json: object not found",
		},
		{
			name: "bucket only",
			err:  &StoreError{Op: "ListJobIDs", Backend: BackendS3, Bucket: "jobs", Err: ErrAccessDenied},
			want: "s3 ListJobIDs: jobs: access denied",
		},
		{
			name: "bare",
			err:  &StoreError{Op: "New", Backend: BackendFile, Err: ErrStoreUnavailable},
			want: "file New: store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &StoreError{Op: "PutTextIfAbsent", Backend: BackendS3, Err: ErrPreconditionFailed})

	assert.True(t, IsPreconditionFailed(wrapped))
	assert.False(t, IsNotFound(wrapped))

	var storeErr *StoreError
	assert.True(t, errors.As(wrapped, &storeErr))
}

func TestSentinelHelpers(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsAccessDenied(ErrAccessDenied))
	assert.True(t, IsBucketNotFound(ErrBucketNotFound))
	assert.True(t, IsInvalidCredentials(ErrInvalidCredentials))
	assert.True(t, IsStoreUnavailable(ErrStoreUnavailable))
	assert.True(t, IsThrottled(ErrThrottled))
	assert.False(t, IsNotFound(nil))
}

func TestReservedKeys(t *testing.T) {
	assert.Equal(t, "job-1/worker-metadata.json", WorkerMetadataKey("job-1"))
	assert.Equal(t, "job-1/results.json", ResultsKey("job-1"))
}
