package jmt

import (
	"context"
	"errors"
)

// Step is one level of a Merkle path: which nibble was followed out of an
// internal node, and that node's full 16-way child hash array (the
// verifier substitutes the recomputed subtree hash for Nibble's slot and
// rehashes up).
type Step struct {
	Nibble   byte
	Children [16]Hash
}

// Proof is a membership or non-membership path from the root down to
// either the queried key's leaf, a leaf with a different key (proving
// non-membership by divergence), or an empty child slot (proving
// non-membership by absence).
type Proof struct {
	Steps    []Step
	Leaf     *LeafNode // the leaf actually found at the end of the path, if any
	KeyFound bool      // true if Leaf.KeyHash equals the queried key hash
}

// Get looks up a key's value digest at the given version, with the proof
// needed to verify the result against that version's root.
func (t *Tree) Get(ctx context.Context, version uint64, key []byte) (Hash, *Proof, error) {
	kh := HashKey(key)
	if version == EmptyVersion {
		return Hash{}, &Proof{}, nil
	}
	root, err := t.reader.GetNode(ctx, rootNodeKey(version))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Hash{}, &Proof{}, nil
		}
		return Hash{}, nil, err
	}

	var steps []Step
	node := root
	depth := 0
	for {
		if node == nil {
			return Hash{}, &Proof{Steps: steps}, nil
		}
		if node.Leaf != nil {
			found := node.Leaf.KeyHash == kh
			return node.Leaf.ValueHash, &Proof{Steps: steps, Leaf: node.Leaf, KeyFound: found}, nil
		}

		nib := nibble(kh, depth)
		steps = append(steps, Step{Nibble: nib, Children: node.Internal.childHashes()})
		child := node.Internal.Children[nib]
		if child.Hash.IsZero() {
			return Hash{}, &Proof{Steps: steps}, nil
		}
		node, err = t.readChild(ctx, nil, child, depth, kh)
		if err != nil {
			return Hash{}, nil, err
		}
		depth++
	}
}

// recomputeRoot walks a proof's steps from leaf to root, substituting leafHash
// at each step's branch and rehashing, returning the resulting root hash.
func recomputeRoot(leafHash Hash, steps []Step) Hash {
	computed := leafHash
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		children := step.Children
		children[step.Nibble] = computed
		var refs [16]ChildRef
		for j, h := range children {
			refs[j] = ChildRef{Hash: h}
		}
		computed = InternalNode{Children: refs}.hash()
	}
	return computed
}

// Verify checks a Proof against an expected root for the given key,
// returning whether it proves membership with the claimed value digest.
func Verify(root Hash, key []byte, claimedValueHash Hash, proof *Proof) bool {
	kh := HashKey(key)
	if proof.Leaf == nil || proof.Leaf.KeyHash != kh || proof.Leaf.ValueHash != claimedValueHash {
		return false
	}
	return recomputeRoot(proof.Leaf.hash(), proof.Steps) == root
}

// VerifyAbsence checks that a Proof demonstrates the key is not present
// under root: either the path ends at an empty child slot, or it ends at a
// leaf whose key differs from the queried one.
func VerifyAbsence(root Hash, key []byte, proof *Proof) bool {
	kh := HashKey(key)

	var leafHash Hash
	if proof.Leaf != nil {
		if proof.Leaf.KeyHash == kh {
			return false
		}
		leafHash = proof.Leaf.hash()
	} else {
		leafHash = zeroHash
	}
	return recomputeRoot(leafHash, proof.Steps) == root
}
