package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-studio/internal/backend"
)

func TestNewSelection(t *testing.T) {
	assert.Equal(t, Selection{"flip", "rotate"}, NewSelection("flip", " rotate ", "flip", ""))
	assert.True(t, NewSelection().Empty())
	assert.True(t, NewSelection(" ", "").Empty())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Augment")
	require.NoError(t, err)
	assert.Equal(t, Augment, k)

	_, err = ParseKind("transcode")
	assert.Error(t, err)
}

func TestOrderedKeys(t *testing.T) {
	res := backend.Results{"b": "", "z": "", "a": "", "c": ""}
	assert.Equal(t, []string{"c", "a", "b", "z"}, orderedKeys(res, Selection{"c", "a", "missing"}))
}
