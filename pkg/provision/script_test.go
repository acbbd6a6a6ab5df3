package provision

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

var testCtx = resolve.Context{
	DefaultStoragePath: "/osfstorage",
	OutputRoot:         "/home/jovyan",
	MountDir:           "/mnt/rdm",
}

func mockRemote(t *testing.T) {
	fs = afero.NewMemMapFs()
	for _, path := range []string{
		"/mnt/rdm/osfstorage/README.md",
		"/mnt/rdm/osfstorage/custom-home-dir/.bashrc",
		"/mnt/rdm/osfstorage/specific-file.txt",
		"/mnt/rdm/googledrive/subdir/data.csv",
		"/mnt/rdm/onedrive/my files/notes.txt",
	} {
		require.NoError(t, afero.WriteFile(fs, path, []byte("contents"), 0644))
	}
}

func TestRender(t *testing.T) {
	mockRemote(t)

	spec := mapping.Spec{
		Entries: []mapping.Entry{
			{Kind: mapping.Copy, Source: "$default_storage_path/specific-file.txt", Target: "./specific-dir/file.txt"},
			{Kind: mapping.Copy, Source: "/googledrive/subdir", Target: "./external/dataset"},
			{Kind: mapping.Link, Source: "/onedrive/my files", Target: "./external/onedrive"},
		},
	}
	ops, err := resolve.Resolve(spec, testCtx)
	require.NoError(t, err)

	var script bytes.Buffer
	require.NoError(t, Render(&script, ops, testCtx))

	exp := `#!/bin/bash
set -xe

# copy /osfstorage -> .
cp -fr /mnt/rdm/osfstorage/. .

# copy /osfstorage/specific-file.txt -> ./specific-dir/file.txt
rm -rf ./specific-dir/file.txt
mkdir -p specific-dir
cp -f /mnt/rdm/osfstorage/specific-file.txt ./specific-dir/file.txt

# copy /googledrive/subdir -> ./external/dataset
rm -rf ./external/dataset
mkdir -p ./external/dataset
cp -fr /mnt/rdm/googledrive/subdir/. ./external/dataset

# link /onedrive/my files -> ./external/onedrive
rm -rf ./external/onedrive
mkdir -p external
ln -s '/mnt/rdm/onedrive/my files' ./external/onedrive
`
	assert.Equal(t, exp, script.String())
}

func TestRenderSourceNotFound(t *testing.T) {
	mockRemote(t)

	ops := []resolve.Operation{
		{Index: 0, Kind: mapping.Copy, Source: "/osfstorage/README.md", Target: "/home/jovyan/README.md"},
		{Index: 1, Kind: mapping.Link, Source: "/box/missing", Target: "/home/jovyan/box"},
	}

	var script bytes.Buffer
	err := Render(&script, ops, testCtx)
	assert.Equal(t, errors.SourceNotFound{Index: 1, Source: "/box/missing"}, err)
}

func TestWriteScript(t *testing.T) {
	mockRemote(t)

	ops, err := resolve.Resolve(mapping.Default(), testCtx)
	require.NoError(t, err)

	path := "/home/jovyan/.binder/" + ScriptName
	require.NoError(t, WriteScript(path, ops, testCtx))

	contents, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "cp -fr /mnt/rdm/osfstorage/. .\n")

	fi, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rwxr-xr-x", fi.Mode().String())
}

func TestRelativeTarget(t *testing.T) {
	target, err := relativeTarget("/home/jovyan", testCtx)
	assert.NoError(t, err)
	assert.Equal(t, ".", target)

	target, err = relativeTarget("/home/jovyan/a/b", testCtx)
	assert.NoError(t, err)
	assert.Equal(t, "./a/b", target)

	_, err = relativeTarget("/home/other", testCtx)
	assert.Equal(t, errors.ErrPathEscape, err)
}
