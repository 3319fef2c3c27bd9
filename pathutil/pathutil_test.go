package pathutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3p3k0/AIOS/layout"
)

func TestSplitSkipsConsecutiveSlashes(t *testing.T) {
	components, err := Split("/alpha//beta///gamma/")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, components)
}

func TestSplitEmptyPath(t *testing.T) {
	components, err := Split("")
	require.NoError(t, err)
	assert.Nil(t, components)
}

func TestSplitRejectsOverlongComponent(t *testing.T) {
	_, err := Split("/" + strings.Repeat("x", layout.MaxNameLength))
	require.Error(t, err)
}

func TestSplitRejectsOverlongPath(t *testing.T) {
	_, err := Split("/" + strings.Repeat("a/", layout.MaxPathLength))
	require.Error(t, err)
}

func TestSplitParentLeaf(t *testing.T) {
	parent, leaf := SplitParentLeaf("/alpha/beta")
	assert.Equal(t, "/alpha", parent)
	assert.Equal(t, "beta", leaf)

	parent, leaf = SplitParentLeaf("/alpha")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "alpha", leaf)

	parent, leaf = SplitParentLeaf("alpha")
	assert.Equal(t, ".", parent)
	assert.Equal(t, "alpha", leaf)
}

func TestCanonicalizeHandlesDotAndDotDot(t *testing.T) {
	out, err := Canonicalize("/alpha/beta", "../gamma/./delta")
	require.NoError(t, err)
	assert.Equal(t, "/alpha/gamma/delta", out)
}

func TestCanonicalizeEmptyStackIsRoot(t *testing.T) {
	out, err := Canonicalize("/", "..")
	require.NoError(t, err)
	assert.Equal(t, "/", out)
}

func TestCanonicalizeAbsoluteInputIgnoresCwd(t *testing.T) {
	out, err := Canonicalize("/somewhere/else", "/alpha/beta")
	require.NoError(t, err)
	assert.Equal(t, "/alpha/beta", out)
}
