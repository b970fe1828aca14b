package jmt

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Reader when a node or value is absent.
var ErrNotFound = errors.New("jmt: node not found")

// Reader reads previously committed nodes by key. Implementations back onto
// a single substore's node column family (pkg/storage).
type Reader interface {
	GetNode(ctx context.Context, key NodeKey) (*Node, error)
}

// Writer stages newly written nodes for a batch. Implementations flush
// staged writes to the node column family at commit time.
type Writer interface {
	PutNode(ctx context.Context, key NodeKey, n *Node) error
}

// Write is a single staged node write, returned by Put so callers can
// inspect or replay the write set before committing it.
type Write struct {
	Key  NodeKey
	Node *Node
}

// KeyValue is one logical update: a raw key and the digest of its new
// value. The raw key is hashed internally; pkg/storage is responsible for
// persisting the raw-key-to-key-hash preimage index separately.
type KeyValue struct {
	Key       []byte
	ValueHash Hash
	Delete    bool
}

// Tree is a handle to one substore's Jellyfish Merkle Tree at a specific
// base version, used to compute the next version's root from a batch of
// updates.
type Tree struct {
	reader Reader
}

// New creates a Tree handle reading prior nodes through r.
func New(r Reader) *Tree {
	return &Tree{reader: r}
}

// putBatch accumulates the node writes of one Put call. Nodes written
// earlier in the batch are not yet visible through the Reader (the caller
// persists them only after Put returns), so lookups during the same batch
// must consult the staged set before falling back to committed storage.
type putBatch struct {
	writes []Write
	staged map[string]*Node
}

func newPutBatch() *putBatch {
	return &putBatch{staged: make(map[string]*Node)}
}

func (b *putBatch) put(key NodeKey, n *Node) {
	b.writes = append(b.writes, Write{Key: key, Node: n})
	b.staged[string(key.Encode())] = n
}

func (b *putBatch) get(key NodeKey) (*Node, bool) {
	n, ok := b.staged[string(key.Encode())]
	return n, ok
}

// Put applies a batch of key/value updates on top of baseVersion, returning
// the new root hash and the set of node writes that must be persisted
// (along with the base version's untouched nodes, which are left alone and
// simply referenced by the new nodes' ChildRef.Version).
//
// An empty baseVersion tree is represented by baseVersion == EmptyVersion;
// Put then builds the tree from scratch. If the batch deletes every
// remaining key, the returned root is the zero hash and no root node is
// written for newVersion.
func (t *Tree) Put(ctx context.Context, baseVersion uint64, newVersion uint64, updates []KeyValue) (Hash, []Write, error) {
	if newVersion <= baseVersion && baseVersion != EmptyVersion {
		return Hash{}, nil, fmt.Errorf("jmt: new version %d must exceed base version %d", newVersion, baseVersion)
	}

	batch := newPutBatch()
	var root *Node
	var err error
	if baseVersion != EmptyVersion {
		root, err = t.reader.GetNode(ctx, rootNodeKey(baseVersion))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Hash{}, nil, err
		}
	}

	for _, kv := range updates {
		kh := HashKey(kv.Key)
		if kv.Delete {
			root, err = t.delete(ctx, batch, root, kh, 0, newVersion)
		} else {
			root, err = t.insert(ctx, batch, root, kh, kv.ValueHash, 0, newVersion)
		}
		if err != nil {
			return Hash{}, nil, err
		}
	}

	rootHash := root.hash()
	if root != nil {
		batch.put(rootNodeKey(newVersion), root)
	}
	return rootHash, batch.writes, nil
}

// EmptyVersion marks a tree with no committed versions yet.
const EmptyVersion = ^uint64(0)

func (t *Tree) insert(ctx context.Context, batch *putBatch, node *Node, kh KeyHash, vh Hash, depth int, version uint64) (*Node, error) {
	if node == nil {
		return &Node{Leaf: &LeafNode{KeyHash: kh, ValueHash: vh}}, nil
	}
	if node.Leaf != nil {
		if node.Leaf.KeyHash == kh {
			return &Node{Leaf: &LeafNode{KeyHash: kh, ValueHash: vh}}, nil
		}
		return t.split(batch, node.Leaf, kh, vh, depth, version)
	}

	nib := nibble(kh, depth)
	child := node.Internal.Children[nib]
	var childNode *Node
	var err error
	if !child.Hash.IsZero() {
		childNode, err = t.readChild(ctx, batch, child, depth, kh)
		if err != nil {
			return nil, err
		}
	}

	newChild, err := t.insert(ctx, batch, childNode, kh, vh, depth+1, version)
	if err != nil {
		return nil, err
	}

	newInternal := *node.Internal
	newInternal.Children[nib] = ChildRef{
		Hash:    newChild.hash(),
		IsLeaf:  newChild.Leaf != nil,
		Version: version,
	}
	batch.put(childKeyAt(depth, version, kh), newChild)
	return &Node{Internal: &newInternal}, nil
}

// readChild fetches the node a ChildRef points to, using the nibble path
// implied by depth+1 nibbles of kh (the path to reach this child from the
// root is always the first depth+1 nibbles of any key hash routed through
// it). Nodes staged earlier in the same batch take precedence over
// committed storage; passing a nil batch (read-only Get paths) skips the
// staged lookup.
func (t *Tree) readChild(ctx context.Context, batch *putBatch, ref ChildRef, depth int, kh KeyHash) (*Node, error) {
	key := NodeKey{Version: ref.Version, Path: pathPrefix(kh, depth+1)}
	if batch != nil {
		if n, ok := batch.get(key); ok {
			return n, nil
		}
	}
	return t.reader.GetNode(ctx, key)
}

// pathPrefix returns the first n nibbles of kh as a NodeKey path.
func pathPrefix(kh KeyHash, n int) []byte {
	path := make([]byte, n)
	for i := 0; i < n; i++ {
		path[i] = nibble(kh, i)
	}
	return path
}

func childKeyAt(depth int, version uint64, kh KeyHash) NodeKey {
	return NodeKey{Version: version, Path: pathPrefix(kh, depth+1)}
}

// split replaces a colliding leaf with a chain of internal nodes down to
// the first nibble at which the existing leaf's key and the new key
// diverge, then hangs both leaves off that node.
func (t *Tree) split(batch *putBatch, existing *LeafNode, kh KeyHash, vh Hash, depth int, version uint64) (*Node, error) {
	oldNib := nibble(existing.KeyHash, depth)
	newNib := nibble(kh, depth)

	if oldNib == newNib {
		var internal InternalNode
		child, err := t.split(batch, existing, kh, vh, depth+1, version)
		if err != nil {
			return nil, err
		}
		internal.Children[oldNib] = ChildRef{Hash: child.hash(), IsLeaf: child.Leaf != nil, Version: version}
		batch.put(childKeyAt(depth, version, kh), child)
		return &Node{Internal: &internal}, nil
	}

	var internal InternalNode
	oldLeafNode := &Node{Leaf: existing}
	newLeafNode := &Node{Leaf: &LeafNode{KeyHash: kh, ValueHash: vh}}
	internal.Children[oldNib] = ChildRef{Hash: oldLeafNode.hash(), IsLeaf: true, Version: version}
	internal.Children[newNib] = ChildRef{Hash: newLeafNode.hash(), IsLeaf: true, Version: version}

	batch.put(childKeyAt(depth, version, existing.KeyHash), oldLeafNode)
	batch.put(childKeyAt(depth, version, kh), newLeafNode)

	return &Node{Internal: &internal}, nil
}

func (t *Tree) delete(ctx context.Context, batch *putBatch, node *Node, kh KeyHash, depth int, version uint64) (*Node, error) {
	if node == nil {
		return nil, nil
	}
	if node.Leaf != nil {
		if node.Leaf.KeyHash == kh {
			return nil, nil
		}
		return node, nil
	}

	nib := nibble(kh, depth)
	child := node.Internal.Children[nib]
	if child.Hash.IsZero() {
		return node, nil
	}
	childNode, err := t.readChild(ctx, batch, child, depth, kh)
	if err != nil {
		return nil, err
	}
	newChild, err := t.delete(ctx, batch, childNode, kh, depth+1, version)
	if err != nil {
		return nil, err
	}

	newInternal := *node.Internal
	if newChild == nil {
		// Deleting one leaf of a now-single-child internal chain leaves
		// the chain in place rather than collapsing it back to a bare
		// leaf; proofs and lookups stay correct, the tree is just one
		// node deeper than a freshly built one would be.
		newInternal.Children[nib] = ChildRef{}
		if newInternal.childHashes() == ([16]Hash{}) {
			return nil, nil
		}
	} else {
		newInternal.Children[nib] = ChildRef{Hash: newChild.hash(), IsLeaf: newChild.Leaf != nil, Version: version}
		batch.put(childKeyAt(depth, version, kh), newChild)
	}

	return &Node{Internal: &newInternal}, nil
}
