package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(fs, root+"/"+path, []byte(contents), 0644))
	}
}

func TestDirFormat(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeTree(t, "/binder", map[string]string{
		"paths.yaml":       "paths: []",
		"conf/runtime.txt": "python-3.10",
	})

	expHasher := sha256.New()
	expHasher.Write([]byte("PATH:conf\n" +
		"PATH:conf/runtime.txt\n" +
		"PATH:paths.yaml\n" +
		"CONTENT:conf/runtime.txt\n" +
		"python-3.10" +
		"CONTENT:paths.yaml\n" +
		"paths: []"))

	actual, err := Dir("/binder")
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(expHasher.Sum(nil)), actual)
}

func TestDirStable(t *testing.T) {
	files := map[string]string{
		"paths.yaml":        "paths: []",
		"environment.yml":   "name: env",
		"nested/a/deep.txt": "deep",
	}

	fs = afero.NewMemMapFs()
	writeTree(t, "/one", files)
	writeTree(t, "/two", files)

	one, err := Dir("/one")
	require.NoError(t, err)
	two, err := Dir("/two")
	require.NoError(t, err)
	assert.Equal(t, one, two)

	writeTree(t, "/two", map[string]string{"nested/a/deep.txt": "changed"})
	changed, err := Dir("/two")
	require.NoError(t, err)
	assert.NotEqual(t, one, changed)

	writeTree(t, "/one", map[string]string{"extra.txt": ""})
	added, err := Dir("/one")
	require.NoError(t, err)
	assert.NotEqual(t, one, added)
}

func TestDirMissing(t *testing.T) {
	fs = afero.NewMemMapFs()
	_, err := Dir("/missing")
	assert.Error(t, err)
}

func TestDirFollowsFileLinks(t *testing.T) {
	fs = afero.NewOsFs()
	root := t.TempDir()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "real.txt"), []byte("x"), 0644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink("missing.txt", filepath.Join(root, "dangling.txt")))

	expHasher := sha256.New()
	expHasher.Write([]byte("PATH:dangling.txt\n" +
		"PATH:link.txt\n" +
		"PATH:real.txt\n" +
		"CONTENT:link.txt\n" +
		"x" +
		"CONTENT:real.txt\n" +
		"x"))

	actual, err := Dir(root)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(expHasher.Sum(nil)), actual)
}

func TestFiles(t *testing.T) {
	fs = afero.NewMemMapFs()
	paths := []string{"/repo/.binder/paths.yaml", "/repo/binder/paths.yaml"}
	writeTree(t, "/repo", map[string]string{".binder/paths.yaml": "paths: []"})

	initial, err := Files(paths)
	require.NoError(t, err)

	// Rewriting the same contents doesn't change the hash.
	writeTree(t, "/repo", map[string]string{".binder/paths.yaml": "paths: []"})
	rewritten, err := Files(paths)
	require.NoError(t, err)
	assert.Equal(t, initial, rewritten)

	writeTree(t, "/repo", map[string]string{".binder/paths.yaml": "override: true\npaths: []"})
	edited, err := Files(paths)
	require.NoError(t, err)
	assert.NotEqual(t, initial, edited)

	writeTree(t, "/repo", map[string]string{"binder/paths.yaml": ""})
	created, err := Files(paths)
	require.NoError(t, err)
	assert.NotEqual(t, edited, created)
}
