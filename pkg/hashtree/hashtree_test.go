package hashtree

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerkleDeterministicAcrossOrder(t *testing.T) {
	leaves := []Leaf{
		{Path: "a.md", ContentHash: "h1"},
		{Path: "b.py", ContentHash: "h2"},
		{Path: "sub/c.txt", ContentHash: "h3"},
	}

	root1 := Root(Build(leaves))

	shuffled := make([]Leaf, len(leaves))
	copy(shuffled, leaves)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	root2 := Root(Build(shuffled))

	assert.Equal(t, root1, root2)
	assert.NotEmpty(t, root1)
}

func TestMerkleChangesWithContent(t *testing.T) {
	base := []Leaf{{Path: "a.md", ContentHash: "h1"}}
	changed := []Leaf{{Path: "a.md", ContentHash: "h2"}}

	assert.NotEqual(t, Root(Build(base)), Root(Build(changed)))
}

func TestMerkleEmptyTree(t *testing.T) {
	root := Root(Build(nil))
	assert.Equal(t, EmptyDirHash(""), root)
}

func TestMerkleLeafOneToOne(t *testing.T) {
	leaves := []Leaf{
		{Path: "a.md", ContentHash: "h1"},
		{Path: "dir/b.md", ContentHash: "h2"},
	}
	nodes := Build(leaves)

	var leafCount int
	for _, n := range nodes {
		if n.Leaf {
			leafCount++
		}
	}
	require.Equal(t, len(leaves), leafCount)

	var roots int
	for _, n := range nodes {
		if !n.Leaf && n.Path == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots, "each directory has exactly one root")
}

func TestContentHashStable(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/file.txt"
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h1 := ContentHash(path)
	h2 := ContentHash(path)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	h3 := ContentHash(path)
	assert.NotEqual(t, h1, h3)
}
