// Package jobstore defines the shared namespace abstraction that workers
// coordinate through.
//
// A namespace is a flat key-value store addressed by slash-delimited keys.
// Each job occupies a `<job_id>/` prefix holding arbitrary input objects plus
// two reserved keys: the claim record and the result record. Backends
// implement a minimal surface: listing first-level prefixes, text get/put,
// an atomic conditional create used as the claim gate, and recursive prefix
// download.
//
// Implementations should:
//   - Use SDK default credential chains where applicable
//   - Be safe for concurrent use
//   - Report "not found" as an absent value, never as an error
package jobstore

import "context"

// Reserved object names within a job prefix.
const (
	// WorkerMetadataName is the claim record written at `<job_id>/`.
	// Its existence, parsable or not, marks the job as owned.
	WorkerMetadataName = "worker-metadata.json"

	// ResultsName is the outcome record written after execution.
	ResultsName = "results.json"
)

// Store abstracts a shared job namespace.
//
// The namespace is shared by all workers; no worker owns any key. Ownership
// of a job is established exclusively through PutTextIfAbsent on its claim
// record.
type Store interface {
	// ListJobIDs enumerates the first-level name components under the
	// namespace root. Order is backend-natural (lexicographic for the
	// filesystem backend, pagination order for S3). Each call re-scans;
	// there is no cursor to resume.
	ListJobIDs(ctx context.Context) ([]string, error)

	// Exists reports whether an object is stored at key. It has no side
	// effects.
	Exists(ctx context.Context, key string) (bool, error)

	// GetText returns the object body at key as text. A missing key is a
	// normal result: ok is false and err is nil.
	GetText(ctx context.Context, key string) (text string, ok bool, err error)

	// PutText writes text at key, creating or replacing unconditionally.
	PutText(ctx context.Context, key, text string) error

	// PutTextIfAbsent atomically creates key with the given text only if no
	// object exists there, reporting whether the create won. Backends
	// without a native conditional write approximate with write-then-verify
	// and must treat any ambiguity as "not created".
	PutTextIfAbsent(ctx context.Context, key, text string) (created bool, err error)

	// DownloadPrefix copies every object under `prefix/` into destDir,
	// preserving relative paths. destDir is created if absent; a
	// pre-existing destination is replaced wholesale so the local mirror
	// matches namespace state at pull time.
	DownloadPrefix(ctx context.Context, prefix, destDir string) error

	// Close releases any resources held by the store.
	Close() error
}

// BackendType identifies a namespace backend.
type BackendType string

const (
	// BackendS3 is AWS S3 or S3-compatible object storage.
	BackendS3 BackendType = "s3"

	// BackendFile is a local filesystem directory.
	BackendFile BackendType = "file"
)

// String returns the string representation of the backend type.
func (b BackendType) String() string {
	return string(b)
}

// WorkerMetadataKey returns the claim record key for a job.
func WorkerMetadataKey(jobID string) string {
	return jobID + "/" + WorkerMetadataName
}

// ResultsKey returns the result record key for a job.
func ResultsKey(jobID string) string {
	return jobID + "/" + ResultsName
}
