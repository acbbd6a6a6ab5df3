package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/rdmstage/pkg/errors"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	stdout = &out
	hashDir = func(dir string) (string, error) {
		assert.Equal(t, "binder", dir)
		return "abc123", nil
	}

	assert.NoError(t, run("binder"))
	assert.Equal(t, "abc123\n", out.String())

	hashDir = func(_ string) (string, error) {
		return "", errors.FileNotFound{Path: "binder"}
	}
	assert.Equal(t, errors.WithContext(errors.FileNotFound{Path: "binder"}, "hash"),
		run("binder"))
}

func TestArgs(t *testing.T) {
	cmd := New()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"binder"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}
