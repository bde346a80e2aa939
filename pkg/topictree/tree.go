package topictree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/logger"
)

// DetachResult tells the caller whether Detach removed anything.
type DetachResult int

const (
	NotFound DetachResult = iota
	Detached
)

func (r DetachResult) String() string {
	if r == Detached {
		return "detached"
	}
	return "not found"
}

// Tree owns the topic tree. Mutations (Insert, Detach, Update) take the
// write lock; Lookup, Save and View take the read lock.
type Tree struct {
	mu    sync.RWMutex
	root  *Node
	index map[string]*Node
	file  string
	log   *logrus.Entry
}

/* Public */

// New wraps an in-memory root that will be persisted to file.
func New(root *Node, file string) *Tree {
	t := &Tree{
		root: root,
		file: file,
		log:  logger.GetLogger("topictree"),
	}
	t.reindex()
	return t
}

// Load reads the tree persisted at file.
func Load(file string) (*Tree, error) {
	root, err := readRoot(file)
	if err != nil {
		return nil, err
	}

	t := New(root, file)
	t.log.Debugf("Loaded topic tree with %d nodes from %q", len(t.index), file)
	return t, nil
}

// Reload replaces the in-memory tree with the persisted one.
func (t *Tree) Reload() error {
	root, err := readRoot(t.file)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = root
	t.reindex()
	t.log.Infof("Reloaded topic tree: %q (%d nodes)", t.file, len(t.index))
	return nil
}

func (t *Tree) File() string {
	return t.file
}

func (t *Tree) Root() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Lookup returns the node at path, or nil.
func (t *Tree) Lookup(path string) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index[NormalizePath(path)]
}

// Insert merges node into the tree under parentPath. An existing node at the
// same path is updated in place; otherwise node is appended to the parent.
// Licenses are merged into the root, their keys are added to the attributions
// of the parent and every ancestor, and cached counts along the chain are
// dropped. It reports whether an existing node was updated.
func (t *Tree) Insert(node *Node, parentPath string, licenses map[string]License) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.index[NormalizePath(parentPath)]
	if parent == nil {
		return false, fmt.Errorf("parent path not found: %q", parentPath)
	}
	if !parent.IsTopic() {
		return false, fmt.Errorf("parent path is not a topic: %q (%s)", parentPath, parent.Kind)
	}

	target := node
	updated := false
	if old, ok := t.index[NormalizePath(node.Path)]; ok {
		t.log.Infof("Updating node at path %s", node.Path)
		old.Update(node)
		target = old
		updated = true
	} else {
		t.log.Infof("Inserting path %s as child of path %s", node.Path, parent.Path)
		node.parent = parent
		parent.Children = append(parent.Children, node)
	}

	if len(licenses) > 0 {
		if t.root.Licenses == nil {
			t.root.Licenses = make(map[string]License, len(licenses))
		}
		keys := make([]string, 0, len(licenses))
		for k, v := range licenses {
			t.root.Licenses[k] = v
			keys = append(keys, k)
		}

		for a := parent; a != nil; a = a.parent {
			if a.Attributions == nil {
				a.Attributions = strset.New()
			}
			a.Attributions.Add(keys...)
		}
	}

	for a := target; a != nil; a = a.parent {
		a.ClearCounts()
	}

	t.reindex()
	return updated, nil
}

// Detach removes the child with id from the parent of the node at path, or
// from the root's children when that node has no parent.
func (t *Tree) Detach(path string, id string) DetachResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.index[NormalizePath(path)]
	if node == nil {
		return NotFound
	}

	parent := node.parent
	if parent == nil {
		parent = t.root
	}

	kept := parent.Children[:0]
	removed := 0
	for _, ch := range parent.Children {
		if ch.ID == id {
			ch.parent = nil
			removed++
			continue
		}
		kept = append(kept, ch)
	}
	for i := len(kept); i < len(parent.Children); i++ {
		parent.Children[i] = nil
	}
	parent.Children = kept

	if removed == 0 {
		return NotFound
	}

	for a := parent; a != nil; a = a.parent {
		a.ClearCounts()
	}

	t.reindex()
	return Detached
}

// Save writes the whole tree to its file, replacing the previous contents.
func (t *Tree) Save() error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t.root, "", "    ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal topic tree: %w", err)
	}

	if err := WriteFileAtomic(t.file, data); err != nil {
		return fmt.Errorf("write topic tree: %w", err)
	}

	t.log.Infof("Rewrote topic tree: %s", t.file)
	return nil
}

// View runs fn with the read lock held. fn must not call locking Tree methods.
func (t *Tree) View(fn func(tx *Txn) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(&Txn{t: t})
}

// Update runs fn with the write lock held. fn must not call locking Tree methods.
func (t *Tree) Update(fn func(tx *Txn) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&Txn{t: t})
}

// Txn is the lock-free view of a tree handed to View and Update callbacks.
type Txn struct {
	t *Tree
}

func (tx *Txn) Root() *Node {
	return tx.t.root
}

func (tx *Txn) Lookup(path string) *Node {
	return tx.t.index[NormalizePath(path)]
}

// Nodes returns every node of kind in pre-order.
func (tx *Txn) Nodes(kind Kind) []*Node {
	var out []*Node
	tx.t.root.Walk(func(n *Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

/* Helpers */

// Leaves collects the descendants of node of the given kind, bottom-up.
func Leaves(node *Node, kind Kind) []*Node {
	var out []*Node
	for _, ch := range node.Children {
		out = append(out, Leaves(ch, kind)...)
	}
	if node.Kind == kind {
		out = append(out, node)
	}
	return out
}

// NormalizePath returns path with a leading and a trailing slash.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return AddSlash(path)
}

func AddSlash(path string) string {
	if path == "" || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

func TrimSlash(path string) string {
	if path == "" || !strings.HasSuffix(path, "/") {
		return path
	}
	return path[:len(path)-1]
}

// WriteFileAtomic writes data to a temporary file next to name and renames it
// over name.
func WriteFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

/* Private */

func readRoot(file string) (*Node, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read topic tree: %w", err)
	}

	root := &Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("decode topic tree %q: %w", file, err)
	}

	var invalid error
	root.Walk(func(n *Node) bool {
		if n.Kind == 0 && invalid == nil {
			invalid = fmt.Errorf("node without kind at path %q", n.Path)
		}
		return invalid == nil
	})
	if invalid != nil {
		return nil, invalid
	}

	return root, nil
}

// reindex rebuilds parent pointers and the path index. Callers hold the write lock.
func (t *Tree) reindex() {
	t.index = make(map[string]*Node)
	if t.root == nil {
		return
	}

	t.root.parent = nil
	var visit func(n *Node)
	visit = func(n *Node) {
		t.index[NormalizePath(n.Path)] = n
		for _, ch := range n.Children {
			ch.parent = n
			visit(ch)
		}
	}
	visit(t.root)
}
