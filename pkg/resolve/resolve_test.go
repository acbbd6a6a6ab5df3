package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
)

var testCtx = Context{
	DefaultStoragePath: "/osfstorage",
	OutputRoot:         "/home/jovyan",
	MountDir:           "/mnt/rdm",
}

func TestNewContext(t *testing.T) {
	ctx, err := NewContext("osfstorage/", "/home/jovyan/", "")
	require.NoError(t, err)
	assert.Equal(t, testCtx, ctx)

	_, err = NewContext("", "/home/jovyan", "")
	assert.Equal(t, errors.MissingFieldError{Field: "default storage path"}, err)

	_, err = NewContext("osfstorage", "relative/home", "")
	assert.Error(t, err)

	_, err = NewContext("osfstorage", "/home/jovyan", "mnt")
	assert.Error(t, err)
}

func TestSource(t *testing.T) {
	tests := map[string]string{
		"$default_storage_path":                 "/osfstorage",
		"$default_storage_path/":                "/osfstorage/",
		"$default_storage_path/custom-home-dir": "/osfstorage/custom-home-dir",
		"$default_storage_path/a/../b":          "/osfstorage/a/../b",
		"/googledrive/subdir":                   "/googledrive/subdir",
		"$other/subdir":                         "$other/subdir",
		"$default_storage_pathX":                "$default_storage_pathX",
	}
	for source, exp := range tests {
		assert.Equal(t, exp, Source(source, testCtx), source)
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		target   string
		exp      string
		expError error
	}{
		{target: ".", exp: "/home/jovyan"},
		{target: "./", exp: "/home/jovyan"},
		{target: "./external/googledrive/", exp: "/home/jovyan/external/googledrive"},
		{target: ".bashrc", exp: "/home/jovyan/.bashrc"},
		{target: "./a/../b", exp: "/home/jovyan/b"},
		{target: "../x", expError: errors.ErrPathEscape},
		{target: "./a/../../jovyan2", expError: errors.ErrPathEscape},
	}

	for _, test := range tests {
		actual, err := Target(test.target, testCtx)
		assert.Equal(t, test.expError, err, test.target)
		assert.Equal(t, test.exp, actual, test.target)
	}
}

func TestPlan(t *testing.T) {
	defaultCopy := mapping.Entry{Kind: mapping.Copy, Source: "$default_storage_path", Target: "."}
	subdirCopy := mapping.Entry{Kind: mapping.Copy, Source: "/googledrive/data", Target: "./subdir"}
	rootCopy := mapping.Entry{Kind: mapping.Copy, Source: "$default_storage_path/home", Target: "./"}
	link := mapping.Entry{Kind: mapping.Link, Source: "/googledrive/subdir", Target: "./external/googledrive"}

	tests := []struct {
		name string
		spec mapping.Spec
		exp  []mapping.Entry
	}{
		{
			name: "BuiltinDefault",
			spec: mapping.Default(),
			exp:  []mapping.Entry{defaultCopy},
		},
		{
			name: "ImplicitDefaultPrepended",
			spec: mapping.Spec{Entries: []mapping.Entry{subdirCopy, link}},
			exp:  []mapping.Entry{defaultCopy, subdirCopy, link},
		},
		{
			name: "ExplicitRootEntry",
			spec: mapping.Spec{Entries: []mapping.Entry{subdirCopy, rootCopy}},
			exp:  []mapping.Entry{subdirCopy, rootCopy},
		},
		{
			name: "Override",
			spec: mapping.Spec{Override: true, Entries: []mapping.Entry{subdirCopy, link}},
			exp:  []mapping.Entry{subdirCopy, link},
		},
		{
			name: "OverrideWithNoEntries",
			spec: mapping.Spec{Override: true},
			exp:  nil,
		},
		{
			name: "NoEntries",
			spec: mapping.Spec{},
			exp:  []mapping.Entry{defaultCopy},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, Plan(test.spec))
		})
	}
}

func TestResolve(t *testing.T) {
	spec := mapping.Spec{
		Entries: []mapping.Entry{
			{Kind: mapping.Copy, Source: "$default_storage_path/dataset", Target: "./data"},
			{Kind: mapping.Link, Source: "/googledrive/subdir", Target: "./external/googledrive"},
		},
	}

	ops, err := Resolve(spec, testCtx)
	require.NoError(t, err)
	assert.Equal(t, []Operation{
		{Index: -1, Kind: mapping.Copy, Source: "/osfstorage", Target: "/home/jovyan"},
		{Index: 0, Kind: mapping.Copy, Source: "/osfstorage/dataset", Target: "/home/jovyan/data"},
		{Index: 1, Kind: mapping.Link, Source: "/googledrive/subdir", Target: "/home/jovyan/external/googledrive"},
	}, ops)
	assert.True(t, ops[0].Implicit())
	assert.False(t, ops[1].Implicit())

	spec.Override = true
	ops, err = Resolve(spec, testCtx)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
	assert.Equal(t, 0, ops[0].Index)
}

func TestResolveEscape(t *testing.T) {
	// Specs built in code skip the validator, so Resolve re-checks targets.
	spec := mapping.Spec{
		Override: true,
		Entries: []mapping.Entry{
			{Kind: mapping.Copy, Source: "/a", Target: "./ok"},
			{Kind: mapping.Copy, Source: "/b", Target: "../escape"},
		},
	}

	_, err := Resolve(spec, testCtx)
	assert.Equal(t, errors.EntryError{Index: 1, Field: "target",
		Value: "../escape", Err: errors.ErrPathEscape}, err)
}

func TestMountPath(t *testing.T) {
	assert.Equal(t, "/mnt/rdm/googledrive/subdir", testCtx.MountPath("/googledrive/subdir"))
	assert.Equal(t, "/mnt/rdm/custom/path", testCtx.MountPath("custom/path"))
}
