package jobstore

import "context"

// Optional store capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The
// core Store interface stays limited to what the claim and report protocols
// need.

// ObjectUploader can copy local files into the namespace. Submission uses
// this to place job inputs; workers never do.
type ObjectUploader interface {
	UploadFile(ctx context.Context, localPath, key string) error
}

// ObjectDeleter can delete objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}
