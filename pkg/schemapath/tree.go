package schemapath

import (
	"slices"
	"strings"
)

// Entry is a leaf of a Tree.
type Entry struct {
	Name string
	Path string
	Link string
}

// Tree is a directory tree of schema entries.
type Tree struct {
	Name     string
	Entries  []Entry
	Children map[string]*Tree
}

// NewTree creates an empty tree root.
func NewTree() *Tree {
	return &Tree{Children: map[string]*Tree{}}
}

// Insert adds the entry under the given directory segments, creating
// intermediate nodes as necessary.
func (t *Tree) Insert(dirs []string, entry Entry) {
	node := t
	for _, dir := range dirs {
		child, ok := node.Children[dir]
		if !ok {
			child = &Tree{Name: dir, Children: map[string]*Tree{}}
			node.Children[dir] = child
		}
		node = child
	}
	node.Entries = append(node.Entries, entry)
}

// Sorted returns the entries and child directories in display order. Both are
// compared case-insensitively.
func (t *Tree) Sorted() ([]Entry, []*Tree) {
	entries := slices.Clone(t.Entries)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	children := make([]*Tree, 0, len(t.Children))
	for _, child := range t.Children {
		children = append(children, child)
	}
	slices.SortFunc(children, func(a, b *Tree) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return entries, children
}

// BuildTree builds a tree from the given schema paths. The link function
// renders the link for each path.
func BuildTree(paths []string, link func(string) string) *Tree {
	root := NewTree()
	for _, p := range paths {
		segments := Split(p)
		if len(segments) == 0 {
			continue
		}
		root.Insert(segments[:len(segments)-1], Entry{
			Name: segments[len(segments)-1],
			Path: p,
			Link: link(p),
		})
	}
	return root
}
