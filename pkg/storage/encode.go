package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/certen/ledgercore/pkg/jmt"
)

const (
	nodeTagLeaf     byte = 0x00
	nodeTagInternal byte = 0x01
)

// encodeNode serializes a jmt.Node for the node column family: a one-byte
// tag followed by either a leaf's (key-hash, value-hash) pair or an
// internal node's 16 (hash, is-leaf, version) child records.
func encodeNode(n *jmt.Node) []byte {
	if n.Leaf != nil {
		out := make([]byte, 1+32+32)
		out[0] = nodeTagLeaf
		copy(out[1:33], n.Leaf.KeyHash[:])
		copy(out[33:65], n.Leaf.ValueHash[:])
		return out
	}
	out := make([]byte, 1+16*(32+1+8))
	out[0] = nodeTagInternal
	off := 1
	for _, c := range n.Internal.Children {
		copy(out[off:off+32], c.Hash[:])
		off += 32
		if c.IsLeaf {
			out[off] = 1
		}
		off++
		binary.BigEndian.PutUint64(out[off:off+8], c.Version)
		off += 8
	}
	return out
}

func decodeNode(raw []byte) (*jmt.Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("storage: empty node record")
	}
	switch raw[0] {
	case nodeTagLeaf:
		if len(raw) != 1+32+32 {
			return nil, fmt.Errorf("storage: malformed leaf node record")
		}
		var leaf jmt.LeafNode
		copy(leaf.KeyHash[:], raw[1:33])
		copy(leaf.ValueHash[:], raw[33:65])
		return &jmt.Node{Leaf: &leaf}, nil
	case nodeTagInternal:
		want := 1 + 16*(32+1+8)
		if len(raw) != want {
			return nil, fmt.Errorf("storage: malformed internal node record")
		}
		var internal jmt.InternalNode
		off := 1
		for i := 0; i < 16; i++ {
			var h jmt.Hash
			copy(h[:], raw[off:off+32])
			off += 32
			isLeaf := raw[off] == 1
			off++
			version := binary.BigEndian.Uint64(raw[off : off+8])
			off += 8
			internal.Children[i] = jmt.ChildRef{Hash: h, IsLeaf: isLeaf, Version: version}
		}
		return &jmt.Node{Internal: &internal}, nil
	default:
		return nil, fmt.Errorf("storage: unknown node tag %d", raw[0])
	}
}
