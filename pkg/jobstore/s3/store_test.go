package s3

import (
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/quarryhq/quarry/pkg/jobstore"
)

// mockAPIError implements smithy.APIError for testing error code mapping.
type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

var _ smithy.APIError = (*mockAPIError)(nil)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "empty bucket",
			config:  Config{},
			wantErr: "bucket name is required",
		},
		{
			name:    "valid minimal config",
			config:  Config{Bucket: "my-bucket"},
			wantErr: "",
		},
		{
			name:    "valid config with endpoint",
			config:  Config{Bucket: "my-bucket", Endpoint: "http://localhost:9000", ForcePathStyle: true},
			wantErr: "",
		},
		{
			name:    "access key without secret",
			config:  Config{Bucket: "my-bucket", AccessKeyID: "AKIA..."},
			wantErr: "both access key ID and secret access key must be provided together",
		},
		{
			name:    "secret without access key",
			config:  Config{Bucket: "my-bucket", SecretAccessKey: "secret"},
			wantErr: "both access key ID and secret access key must be provided together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWrapError_APICodes(t *testing.T) {
	s := &Store{bucket: "jobs"}

	tests := []struct {
		code string
		want error
	}{
		{"NoSuchKey", jobstore.ErrNotFound},
		{"NotFound", jobstore.ErrNotFound},
		{"NoSuchBucket", jobstore.ErrBucketNotFound},
		{"PreconditionFailed", jobstore.ErrPreconditionFailed},
		{"ConditionalRequestConflict", jobstore.ErrPreconditionFailed},
		{"AccessDenied", jobstore.ErrAccessDenied},
		{"InvalidAccessKeyId", jobstore.ErrInvalidCredentials},
		{"SlowDown", jobstore.ErrThrottled},
		{"ServiceUnavailable", jobstore.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := s.wrapError("Op", "key", &mockAPIError{code: tt.code, message: "x"})
			assert.ErrorIs(t, err, tt.want)

			var storeErr *jobstore.StoreError
			assert.ErrorAs(t, err, &storeErr)
			assert.Equal(t, "jobs", storeErr.Bucket)
		})
	}
}

func TestWrapError_MessageFallback(t *testing.T) {
	s := &Store{bucket: "jobs"}

	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"404", "https response error StatusCode: 404", jobstore.ErrNotFound},
		{"precondition", "operation error S3: PutObject, https response error StatusCode: 412, PreconditionFailed", jobstore.ErrPreconditionFailed},
		{"forbidden", "Forbidden: no", jobstore.ErrAccessDenied},
		{"throttle", "SlowDown: busy", jobstore.ErrThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.wrapError("Op", "key", fmt.Errorf("%s", tt.msg))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		sdkRegion string
		want      string
	}{
		{"sdk resolved", "", "eu-west-1", "eu-west-1"},
		{"aws default", "", "", DefaultAWSRegion},
		{"compatible store no default", "http://localhost:9000", "", ""},
		{"compatible store explicit", "http://localhost:9000", "us-ks-2", "us-ks-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveRegion(tt.endpoint, tt.sdkRegion))
		})
	}
}
