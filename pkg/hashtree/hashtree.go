// Package hashtree implements C1: per-file content hashing and the
// directory-wide Merkle tree used for cheap change detection (spec.md §4.1).
package hashtree

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"strings"
)

const readWindow = 64 * 1024 // 64 KiB streaming window, per spec.md §4.1

// ContentHash returns the SHA-256 of a file's bytes, streamed in 64 KiB
// windows. On I/O error it returns a stable "errored" hash instead of
// failing, so the indexing pipeline can still place the file in the index
// with a reproducible identity (spec.md §4.1).
func ContentHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return errorHash(err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, readWindow)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errorHash(rerr)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func errorHash(err error) string {
	h := sha256.Sum256([]byte("ERROR:" + err.Error()))
	return hex.EncodeToString(h[:])
}

// MerkleLeaf computes the leaf hash for a file at the given relative path
// with the given content hash.
func MerkleLeaf(path, contentHash string) string {
	h := sha256.Sum256([]byte(path + ":" + contentHash))
	return hex.EncodeToString(h[:])
}

// MerkleInternal computes a non-leaf node hash from its children's hashes.
// Children are sorted ascending first so that the result is independent of
// traversal order (Testable Property 2: Merkle determinism).
func MerkleInternal(childHashes []string) string {
	sorted := make([]string, len(childHashes))
	copy(sorted, childHashes)
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(strings.Join(sorted, ":")))
	return hex.EncodeToString(h[:])
}

// EmptyDirHash is the hash assigned to a directory node with no children.
func EmptyDirHash(nodePath string) string {
	h := sha256.Sum256([]byte("EMPTY:" + nodePath))
	return hex.EncodeToString(h[:])
}

// Leaf is one file's identity within the tree being built.
type Leaf struct {
	Path        string // relative path, e.g. "a/b/c.md"
	ContentHash string
}

// Node is one node (leaf or internal) of a built Merkle tree.
type Node struct {
	Path       string // "" for root, otherwise "a/b/c"
	Hash       string
	Leaf       bool
	ParentPath string
	Depth      int
}

// Build constructs the full Merkle tree for a directory's file universe and
// returns every node: the internal nodes deepest first (the root last among
// them), followed by the leaves in sorted-path order. Insertion order is
// deterministic: nodes of equal depth are processed in sorted-path order, so two
// directories with identical (path, content-hash) multisets produce
// identical trees regardless of filesystem traversal order.
func Build(leaves []Leaf) []Node {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	leafNodes := make([]Node, 0, len(sorted))

	for _, l := range sorted {
		leafHash := MerkleLeaf(l.Path, l.ContentHash)
		leafNodes = append(leafNodes, Node{
			Path:       l.Path,
			Hash:       leafHash,
			Leaf:       true,
			ParentPath: dirOf(l.Path),
			Depth:      depthOf(l.Path),
		})
	}

	// Collect the set of all directory paths that appear, including
	// intermediate ones, bottom to top.
	dirSet := map[string]bool{"": true}
	for _, l := range sorted {
		p := dirOf(l.Path)
		for {
			dirSet[p] = true
			if p == "" {
				break
			}
			p = dirOf(p)
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	// Deepest first so children are always hashed before their parent.
	sort.Slice(dirs, func(i, j int) bool {
		if di, dj := depthOf(dirs[i]), depthOf(dirs[j]); di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	nodeHash := map[string]string{}
	for _, ln := range leafNodes {
		nodeHash[ln.Path] = ln.Hash
	}

	// Build immediate child name sets for each directory (both leaf files and
	// sub-directories).
	immediateChildDirs := map[string][]string{}
	for d := range dirSet {
		if d == "" {
			continue
		}
		parent := dirOf(d)
		immediateChildDirs[parent] = append(immediateChildDirs[parent], d)
	}
	immediateChildFiles := map[string][]string{}
	for _, l := range sorted {
		parent := dirOf(l.Path)
		immediateChildFiles[parent] = append(immediateChildFiles[parent], l.Path)
	}

	var internalNodes []Node
	for _, d := range dirs {
		var hashes []string
		for _, cd := range immediateChildDirs[d] {
			hashes = append(hashes, nodeHash[cd])
		}
		for _, cf := range immediateChildFiles[d] {
			hashes = append(hashes, nodeHash[cf])
		}

		var h string
		if len(hashes) == 0 {
			h = EmptyDirHash(d)
		} else {
			h = MerkleInternal(hashes)
		}
		nodeHash[d] = h

		parent := ""
		if d != "" {
			parent = dirOf(d)
		}
		internalNodes = append(internalNodes, Node{
			Path:       d,
			Hash:       h,
			Leaf:       false,
			ParentPath: parent,
			Depth:      depthOf(d),
		})
	}

	nodes := make([]Node, 0, len(leafNodes)+len(internalNodes))
	nodes = append(nodes, internalNodes...)
	nodes = append(nodes, leafNodes...)
	return nodes
}

// Root returns the root node's hash from a built tree, or EmptyDirHash("")
// if nodes is empty.
func Root(nodes []Node) string {
	for _, n := range nodes {
		if !n.Leaf && n.Path == "" {
			return n.Hash
		}
	}
	return EmptyDirHash("")
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func depthOf(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}
