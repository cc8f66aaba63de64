package submit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filestore "github.com/quarryhq/quarry/pkg/jobstore/file"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStage_SingleFilesKeepExtension(t *testing.T) {
	dir := t.TempDir()
	kernel := filepath.Join(dir, "model.py")
	data := filepath.Join(dir, "inputs.json")
	writeFile(t, kernel, "print()")
	writeFile(t, data, "{}")

	staged, err := Stage(kernel, data)
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(staged) }()

	got, err := os.ReadFile(filepath.Join(staged, "kernel.py"))
	require.NoError(t, err)
	assert.Equal(t, "print()", string(got))

	got, err = os.ReadFile(filepath.Join(staged, "data.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestStage_DirectoriesKeepTrees(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "k", "main.py"), "k")
	writeFile(t, filepath.Join(dir, "d", "sub", "part.csv"), "d")

	staged, err := Stage(filepath.Join(dir, "k"), filepath.Join(dir, "d"))
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(staged) }()

	_, err = os.Stat(filepath.Join(staged, "kernel", "main.py"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(staged, "data", "sub", "part.csv"))
	require.NoError(t, err)
}

func TestSubmit_UploadsUnderOnePrefix(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "k", "main.py"), "kernel")
	writeFile(t, filepath.Join(dir, "d", "input.txt"), "data")

	jobID, err := Submit(ctx, store, &Manifest{
		Kernel: filepath.Join(dir, "k"),
		Data:   filepath.Join(dir, "d"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.NotContains(t, jobID, "-", "job ids are uuid hex without dashes")

	ids, err := store.ListJobIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{jobID}, ids)

	text, ok, err := store.GetText(ctx, jobID+"/kernel/main.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kernel", text)

	text, ok, err = store.GetText(ctx, jobID+"/data/input.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "data", text)

	// A freshly submitted job is unclaimed: no reserved records.
	ok, err = store.Exists(ctx, jobID+"/worker-metadata.json")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Exists(ctx, jobID+"/results.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmit_ExcludeGlobs(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "k", "main.py"), "k")
	writeFile(t, filepath.Join(dir, "d", "keep.csv"), "keep")
	writeFile(t, filepath.Join(dir, "d", "scratch.tmp"), "drop")

	jobID, err := Submit(ctx, store, &Manifest{
		Kernel:  filepath.Join(dir, "k"),
		Data:    filepath.Join(dir, "d"),
		Exclude: []string{"data/**/*.tmp", "data/*.tmp"},
	})
	require.NoError(t, err)

	ok, err := store.Exists(ctx, jobID+"/data/keep.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, jobID+"/data/scratch.tmp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmit_IncludeGlobs(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "k", "main.py"), "k")
	writeFile(t, filepath.Join(dir, "d", "a.json"), "a")
	writeFile(t, filepath.Join(dir, "d", "b.bin"), "b")

	jobID, err := Submit(ctx, store, &Manifest{
		Kernel:  filepath.Join(dir, "k"),
		Data:    filepath.Join(dir, "d"),
		Include: []string{"kernel/**", "data/**/*.json", "data/*.json"},
	})
	require.NoError(t, err)

	ok, err := store.Exists(ctx, jobID+"/kernel/main.py")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, jobID+"/data/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, jobID+"/data/b.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.PutText(ctx, "job-1/input.txt", "x"))

	dest := filepath.Join(t.TempDir(), "job-1")
	require.NoError(t, Fetch(ctx, store, "job-1", dest))

	got, err := os.ReadFile(filepath.Join(dest, "input.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	assert.Error(t, Fetch(ctx, store, "  ", dest))
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	writeFile(t, path, strings.Join([]string{
		"kernel: ./model.py",
		"data: ./inputs",
		"exclude:",
		`  - "data/**/*.tmp"`,
	}, "\n"))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "./model.py", m.Kernel)
	assert.Equal(t, "./inputs", m.Data)
	assert.Equal(t, []string{"data/**/*.tmp"}, m.Exclude)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestManifest_Validate(t *testing.T) {
	assert.Error(t, (&Manifest{}).Validate())
	assert.Error(t, (&Manifest{Kernel: "k"}).Validate())
	assert.NoError(t, (&Manifest{Kernel: "k", Data: "d"}).Validate())
}
