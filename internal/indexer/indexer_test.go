package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x8000-0000/ftagsd/internal/tags"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexProject_ParsesMultipleFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "add.c", "int add(int a, int b) { return a + b; }\n")
	writeFile(t, root, "sub.c", "int sub(int a, int b) { return a - b; }\n")
	writeFile(t, root, "README.md", "not a source file\n")

	res, err := IndexProject(context.Background(), Options{
		Name:    "demo",
		Root:    root,
		Workers: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesIndexed)
	assert.Empty(t, res.Failed)

	var sawAdd, sawSub bool
	for _, r := range res.DB.GetFunctions() {
		name, _ := res.DB.Symbols.GetString(r.SymbolNameKey)
		if name == "add" {
			sawAdd = true
		}
		if name == "sub" {
			sawSub = true
		}
	}
	assert.True(t, sawAdd)
	assert.True(t, sawSub)
}

func TestIndexProject_ExcludesBuildDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "int main(void) { return 0; }\n")
	writeFile(t, root, "build/generated.c", "int generated(void) { return 1; }\n")

	res, err := IndexProject(context.Background(), Options{
		Name: "demo",
		Root: root,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
}

func TestIndexProject_RecordsPerFileFailureWithoutAbortingRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.c", "int good(void) { return 0; }\n")
	badPath := writeFile(t, root, "bad.c", "int bad(void) { return 0; }\n")

	// Remove the file after scan discovery would have found it, so the
	// read inside parseJob fails while the scan itself succeeded.
	require.NoError(t, os.Remove(badPath))

	res, err := IndexProject(context.Background(), Options{Name: "demo", Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	assert.Len(t, res.Failed, 1)
}

func TestIndexFile_UpdatesExistingTranslationUnit(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "counter.c", "int counter(void) { return 1; }\n")

	db := tags.NewProjectDB("demo", root)
	require.NoError(t, IndexFile(context.Background(), db, path))
	require.NoError(t, os.WriteFile(path, []byte("int counter(void) { return 2; }\nint extra(void) { return 3; }\n"), 0o644))
	require.NoError(t, IndexFile(context.Background(), db, path))

	var sawExtra bool
	for _, r := range db.GetFunctions() {
		name, _ := db.Symbols.GetString(r.SymbolNameKey)
		if name == "extra" {
			sawExtra = true
		}
	}
	assert.True(t, sawExtra, "re-indexing should replace the translation unit with the new content")
}
