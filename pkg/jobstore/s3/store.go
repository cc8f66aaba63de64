package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/quarryhq/quarry/pkg/jobstore"
)

// Store implements jobstore.Store backed by an S3 bucket.
//
// Job ids are the bucket's first-level CommonPrefixes under delimiter "/".
type Store struct {
	client       *s3.Client
	bucket       string
	maxKeys      int
	verifyWrites bool
}

// Ensure Store implements the interfaces.
var (
	_ jobstore.Store          = (*Store)(nil)
	_ jobstore.ObjectUploader = (*Store)(nil)
	_ jobstore.ObjectDeleter  = (*Store)(nil)
)

// New creates an S3-backed job store.
//
// The store uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &jobstore.StoreError{
			Op:      "New",
			Backend: jobstore.BackendS3,
			Bucket:  cfg.Bucket,
			Err:     err,
		}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if maxKeys > MaxAllowedKeys {
		maxKeys = MaxAllowedKeys
	}

	return &Store{
		client:       client,
		bucket:       cfg.Bucket,
		maxKeys:      maxKeys,
		verifyWrites: cfg.VerifyWrites,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

// ListJobIDs enumerates first-level CommonPrefixes as job ids, paginating
// until the listing is exhausted.
func (s *Store) ListJobIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var continuation *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Delimiter:         aws.String("/"),
			MaxKeys:           aws.Int32(int32(s.maxKeys)),
			ContinuationToken: continuation,
		}

		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, s.wrapError("ListJobIDs", "", err)
		}

		for _, cp := range output.CommonPrefixes {
			pref := aws.ToString(cp.Prefix)
			if strings.HasSuffix(pref, "/") {
				ids = append(ids, strings.TrimSuffix(pref, "/"))
			}
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			return ids, nil
		}
		continuation = output.NextContinuationToken
	}
}

// Exists probes a single key via HeadObject.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	if _, err := s.client.HeadObject(ctx, input); err != nil {
		wrapped := s.wrapError("Exists", key, err)
		if jobstore.IsNotFound(wrapped) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

// GetText downloads a key's body as text. A missing key yields ok=false.
func (s *Store) GetText(ctx context.Context, key string) (string, bool, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	output, err := s.client.GetObject(ctx, input)
	if err != nil {
		wrapped := s.wrapError("GetText", key, err)
		if jobstore.IsNotFound(wrapped) {
			return "", false, nil
		}
		return "", false, wrapped
	}
	defer func() { _ = output.Body.Close() }()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return "", false, s.wrapError("GetText", key, err)
	}
	return string(body), true, nil
}

// PutText writes text at key, creating or replacing unconditionally.
func (s *Store) PutText(ctx context.Context, key, text string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(text),
		ContentLength: aws.Int64(int64(len(text))),
		ContentType:   aws.String("application/json"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.wrapError("PutText", key, err)
	}
	return nil
}

// PutTextIfAbsent creates key only if no object exists there.
//
// The default path uses S3 conditional writes (If-None-Match: *): a 412 from
// the service means another writer got there first. With VerifyWrites set,
// the store falls back to probe, unconditional put, then read-back: the
// create counts only when the read-back body is byte-identical to what we
// wrote (the claim record carries the worker id, so a racing writer's record
// differs). Any ambiguity along the fallback path reports "not created".
func (s *Store) PutTextIfAbsent(ctx context.Context, key, text string) (bool, error) {
	if s.verifyWrites {
		return s.putTextVerify(ctx, key, text)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(text),
		ContentLength: aws.Int64(int64(len(text))),
		ContentType:   aws.String("application/json"),
		IfNoneMatch:   aws.String("*"),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		wrapped := s.wrapError("PutTextIfAbsent", key, err)
		if jobstore.IsPreconditionFailed(wrapped) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

// putTextVerify approximates a conditional create on endpoints without
// If-None-Match support. Fails closed: an error or mismatch after the put
// never reports the create as won.
func (s *Store) putTextVerify(ctx context.Context, key, text string) (bool, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := s.PutText(ctx, key, text); err != nil {
		return false, err
	}

	stored, ok, err := s.GetText(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return stored == text, nil
}

// DownloadPrefix copies every object under `prefix/` into destDir,
// preserving the key path relative to the prefix.
func (s *Store) DownloadPrefix(ctx context.Context, prefix, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return s.wrapError("DownloadPrefix", prefix, err)
	}

	keyPrefix := strings.TrimSuffix(prefix, "/") + "/"
	var continuation *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(keyPrefix),
			MaxKeys:           aws.Int32(int32(s.maxKeys)),
			ContinuationToken: continuation,
		}

		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return s.wrapError("DownloadPrefix", prefix, err)
		}

		for _, obj := range output.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, keyPrefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			if err := s.downloadObject(ctx, key, filepath.Join(destDir, filepath.FromSlash(rel))); err != nil {
				return err
			}
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			return nil
		}
		continuation = output.NextContinuationToken
	}
}

// downloadObject streams a single object to a local file.
func (s *Store) downloadObject(ctx context.Context, key, localPath string) error {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.wrapError("DownloadPrefix", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return s.wrapError("DownloadPrefix", key, err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return s.wrapError("DownloadPrefix", key, err)
	}
	if _, err := io.Copy(f, output.Body); err != nil {
		_ = f.Close()
		return s.wrapError("DownloadPrefix", key, err)
	}
	if err := f.Close(); err != nil {
		return s.wrapError("DownloadPrefix", key, err)
	}
	return nil
}

// UploadFile copies a local file into the namespace at key.
func (s *Store) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return s.wrapError("UploadFile", key, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return s.wrapError("UploadFile", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.wrapError("UploadFile", key, err)
	}
	return nil
}

// DeleteObject deletes an object.
func (s *Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return s.wrapError("DeleteObject", key, err)
	}
	return nil
}

// Close releases any resources held by the store.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (s *Store) Close() error {
	return nil
}

// wrapError converts S3 errors to store errors with appropriate sentinel errors.
func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &jobstore.StoreError{
		Op:      op,
		Backend: jobstore.BackendS3,
		Bucket:  s.bucket,
		Key:     key,
		Err:     err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = jobstore.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = jobstore.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			wrapped.Err = jobstore.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = jobstore.ErrBucketNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			wrapped.Err = jobstore.ErrPreconditionFailed
		case "AccessDenied", "Forbidden":
			wrapped.Err = jobstore.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = jobstore.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = jobstore.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = jobstore.ErrStoreUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = jobstore.ErrNotFound
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = jobstore.ErrBucketNotFound
	case strings.Contains(errMsg, "PreconditionFailed") || strings.Contains(errMsg, "412"):
		wrapped.Err = jobstore.ErrPreconditionFailed
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = jobstore.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = jobstore.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = jobstore.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = jobstore.ErrStoreUnavailable
	}

	return wrapped
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The sdkRegion parameter already incorporates explicit config, env, and
// profile resolution. This function only applies the fallback default:
//   - If sdkRegion is still empty AND no custom endpoint, default to us-east-1
//   - For S3-compatible stores (endpoint set), no defaulting occurs
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
