package cmd

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/pkg/jobstore"
	filestore "github.com/quarryhq/quarry/pkg/jobstore/file"
	s3store "github.com/quarryhq/quarry/pkg/jobstore/s3"
)

// buildStore validates the loaded config and constructs the namespace
// backend it selects.
func buildStore(ctx context.Context, cfg *config.Config) (jobstore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:         cfg.Store.Bucket,
			Region:         cfg.Store.Region,
			Endpoint:       cfg.Store.Endpoint,
			Profile:        cfg.Store.Profile,
			ForcePathStyle: cfg.Store.ForcePathStyle,
			VerifyWrites:   cfg.Store.VerifyWrites,
		})
	case "file":
		return filestore.New(filestore.Config{Root: cfg.Store.Root})
	default:
		return nil, fmt.Errorf("unknown store backend %q (want s3 or file)", cfg.Store.Backend)
	}
}
