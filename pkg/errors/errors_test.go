package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.NoError(t, WithContext(nil, "ignored"))

	root := New("root")
	err := WithContext(WithContext(root, "inner"), "outer")
	assert.EqualError(t, err, "outer: inner: root")
	assert.True(t, Is(err, root))
	assert.Equal(t, root, RootCause(err))
}

func TestGetFriendlyError(t *testing.T) {
	friendly := NewFriendlyError("please fix %s", "it")
	wrapped := WithContext(friendly, "context")

	got, ok := GetFriendlyError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "please fix it", got.FriendlyMessage())

	parseErr := WithContext(ParseError{Path: "paths.yaml", Err: New("bad")}, "load")
	got, ok = GetFriendlyError(parseErr)
	assert.True(t, ok)
	assert.Contains(t, got.FriendlyMessage(), `"paths.yaml"`)

	_, ok = GetFriendlyError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestEntryError(t *testing.T) {
	tests := []struct {
		err EntryError
		exp string
	}{
		{
			err: EntryError{Index: 2, Field: "type", Value: "move", Err: ErrInvalidKind},
			exp: `paths[2].type: type must be either "copy" or "link" (got "move")`,
		},
		{
			err: EntryError{Index: -1, Field: "override", Err: ErrInvalidOverride},
			exp: "override: override must be a boolean",
		},
	}

	for _, test := range tests {
		assert.EqualError(t, test.err, test.exp)
		assert.True(t, Is(test.err, test.err.Err))
	}
}

func TestSourceNotFound(t *testing.T) {
	assert.EqualError(t, SourceNotFound{Index: 1, Source: "/osfstorage/data"},
		`paths[1].source: "/osfstorage/data" does not exist`)
	assert.EqualError(t, SourceNotFound{Index: -1, Source: "/osfstorage"},
		`default mapping: source "/osfstorage" does not exist`)
}
