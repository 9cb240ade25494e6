package schema

import "strconv"

// Handle identifies a field inside a Tree. Zero is the invalid handle.
type Handle uint32

type node struct {
	field  Field
	parent Handle
	valid  bool
}

// Tree is the arena owning the fields of one root chunk. Parents own
// their children through their child lists; children reach their
// parent through a handle lookup.
type Tree struct {
	nodes    []node
	freeList []Handle
}

func newTree() *Tree {
	return &Tree{
		nodes:    make([]node, 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

func (t *Tree) insert(f Field, parent Handle) Handle {
	n := node{field: f, parent: parent, valid: true}
	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.nodes[h-1] = n
		return h
	}
	t.nodes = append(t.nodes, n)
	return Handle(len(t.nodes))
}

// Get returns the field stored under h.
func (t *Tree) Get(h Handle) (Field, bool) {
	if h == 0 || int(h) > len(t.nodes) {
		return nil, false
	}
	n := t.nodes[h-1]
	if !n.valid {
		return nil, false
	}
	return n.field, true
}

func (t *Tree) parent(h Handle) Field {
	if h == 0 || int(h) > len(t.nodes) {
		return nil
	}
	n := t.nodes[h-1]
	if !n.valid {
		return nil
	}
	p, _ := t.Get(n.parent)
	return p
}

func (t *Tree) release(h Handle) {
	if h == 0 || int(h) > len(t.nodes) || !t.nodes[h-1].valid {
		return
	}
	t.nodes[h-1] = node{}
	t.freeList = append(t.freeList, h)
}

// Len returns the number of live fields.
func (t *Tree) Len() int {
	return len(t.nodes) - len(t.freeList)
}

// attach inserts f and its subtree under parent and retries pending
// dependency write-backs.
func attach(f Field, t *Tree, parent Handle) {
	bind(f, t, parent)
	_ = flush(f)
}

// attachDecoded inserts f like attach but drops pending write-backs, as
// f is about to take its values from a stream.
func attachDecoded(f Field, t *Tree, parent Handle) {
	bind(f, t, parent)
	discard(f)
}

func bind(f Field, t *Tree, parent Handle) {
	b := f.base()
	b.tree = t
	b.handle = t.insert(f, parent)
	for _, c := range f.children() {
		bind(c, t, b.handle)
	}
}

// detach releases f's subtree from its tree.
func detach(f Field) {
	for _, c := range f.children() {
		detach(c)
	}
	b := f.base()
	if b.tree != nil {
		b.tree.release(b.handle)
	}
	b.tree, b.handle = nil, 0
}

type flusher interface {
	flush() error
	discard()
}

// flush writes back values cached while fields were detached. The first
// failure is returned; failed bindings stay pending for the next attach.
func flush(f Field) error {
	var first error
	if fl, ok := f.(flusher); ok {
		if err := fl.flush(); err != nil {
			first = err
		}
	}
	for _, c := range f.children() {
		if err := flush(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func discard(f Field) {
	if fl, ok := f.(flusher); ok {
		fl.discard()
	}
	for _, c := range f.children() {
		discard(c)
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
