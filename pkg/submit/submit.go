// Package submit bundles kernel+data inputs into a job folder and uploads
// it under a fresh job id, the step that precedes any worker scan. It also
// fetches job folders by id without claiming them.
package submit

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/quarryhq/quarry/pkg/jobstore"
)

// Submit stages the manifest's inputs, then uploads every staged file under
// a fresh job id prefix. It returns the assigned job id.
//
// The store must support uploads (jobstore.ObjectUploader); the worker-side
// Store contract alone cannot place binary inputs.
func Submit(ctx context.Context, store jobstore.Store, m *Manifest) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	uploader, ok := store.(jobstore.ObjectUploader)
	if !ok {
		return "", fmt.Errorf("store backend does not support uploads")
	}

	staged, err := Stage(m.Kernel, m.Data)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(staged) }()

	jobID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := uploadDir(ctx, uploader, staged, jobID, m.Include, m.Exclude); err != nil {
		return "", err
	}
	return jobID, nil
}

// Stage copies kernel and data inputs into an isolated temp dir so the
// uploader sees one root. Directories keep their trees under `kernel/` and
// `data/`; single files become `kernel<ext>` and `data<ext>`.
func Stage(kernel, data string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "quarry-job-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	if err := stageInput(kernel, tmpDir, "kernel"); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	if err := stageInput(data, tmpDir, "data"); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	return tmpDir, nil
}

func stageInput(src, destRoot, name string) error {
	st, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s input: %w", name, err)
	}

	if st.IsDir() {
		return copyTree(src, filepath.Join(destRoot, name))
	}
	// Keep the extension so workers can tell .txt from .json inputs.
	return copyOne(src, filepath.Join(destRoot, name+filepath.Ext(src)))
}

// uploadDir walks the staged tree and uploads each file that passes the
// include/exclude globs. Reserved record names are never uploaded.
func uploadDir(ctx context.Context, uploader jobstore.ObjectUploader, root, jobID string, include, exclude []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		base := filepath.Base(rel)
		if base == jobstore.WorkerMetadataName || base == jobstore.ResultsName {
			return nil
		}

		match, err := selected(rel, include, exclude)
		if err != nil {
			return err
		}
		if !match {
			return nil
		}

		return uploader.UploadFile(ctx, path, jobID+"/"+rel)
	})
}

// selected applies include then exclude doublestar patterns to a staged path.
func selected(rel string, include, exclude []string) (bool, error) {
	matched := len(include) == 0
	for _, pat := range include {
		ok, err := doublestar.Match(pat, rel)
		if err != nil {
			return false, fmt.Errorf("include pattern %q: %w", pat, err)
		}
		if ok {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	for _, pat := range exclude {
		ok, err := doublestar.Match(pat, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pat, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// Fetch downloads a job folder by id into destDir without claiming it.
func Fetch(ctx context.Context, store jobstore.Store, jobID, destDir string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job id is required")
	}
	return store.DownloadPrefix(ctx, jobID, destDir)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyOne(path, target)
	})
}

func copyOne(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
