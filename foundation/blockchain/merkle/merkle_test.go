// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
)

// Data uses the sha256 hashing algorithm for the merkle tree.
type Data struct {
	x string
}

// Hash hashes the values using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(d.x)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

// =============================================================================

func sum(parts ...[]byte) []byte {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	h := sha256.Sum256(data)
	return h[:]
}

func leaf(s string) []byte {
	h, _ := Data{x: s}.Hash()
	return h
}

func Test_RootComputation(t *testing.T) {
	a, b, c := leaf("a"), leaf("b"), leaf("c")
	ab := sum(a, b)
	cc := sum(c, c)

	type table struct {
		name string
		data []Data
		exp  []byte
	}

	tt := []table{
		{name: "single", data: []Data{{x: "a"}}, exp: a},
		{name: "pair", data: []Data{{x: "a"}, {x: "b"}}, exp: ab},
		{name: "odd", data: []Data{{x: "a"}, {x: "b"}, {x: "c"}}, exp: sum(ab, cc)},
		{name: "four", data: []Data{{x: "a"}, {x: "b"}, {x: "c"}, {x: "d"}}, exp: sum(ab, sum(c, leaf("d")))},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			tree, err := merkle.NewTree(tst.data)
			if err != nil {
				t.Fatalf("Test %s:\tShould be able to build the tree: %v", tst.name, err)
			}

			if !bytes.Equal(tree.MerkleRoot, tst.exp) {
				t.Logf("Test %s:\tgot: %x", tst.name, tree.MerkleRoot)
				t.Logf("Test %s:\texp: %x", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould get back the right root.", tst.name)
			}

			if err := tree.Verify(); err != nil {
				t.Fatalf("Test %s:\tShould be able to verify the tree: %v", tst.name, err)
			}

			if len(tree.Values()) != len(tst.data) {
				t.Fatalf("Test %s:\tShould get back %d values, got %d.", tst.name, len(tst.data), len(tree.Values()))
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_EmptyTree(t *testing.T) {
	t1, err := merkle.NewTree[Data](nil)
	if err != nil {
		t.Fatalf("Should be able to build an empty tree: %v", err)
	}

	t2, err := merkle.NewTree([]Data{})
	if err != nil {
		t.Fatalf("Should be able to build an empty tree: %v", err)
	}

	if t1.RootHex() != merkle.NoRoot || t2.RootHex() != merkle.NoRoot {
		t.Fatalf("Should get back the no root sentinel for an empty tree.")
	}

	if len(t1.Values()) != 0 {
		t.Fatalf("Should get back no values for an empty tree.")
	}

	if err := t1.Verify(); err != nil {
		t.Fatalf("Should be able to verify an empty tree: %v", err)
	}
}

func Test_OrderSensitivity(t *testing.T) {
	ab, err := merkle.NewTree([]Data{{x: "a"}, {x: "b"}})
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	ab2, err := merkle.NewTree([]Data{{x: "a"}, {x: "b"}})
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	ba, err := merkle.NewTree([]Data{{x: "b"}, {x: "a"}})
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	if ab.RootHex() != ab2.RootHex() {
		t.Fatalf("Should get the same root for the same ordered values.")
	}

	if ab.RootHex() == ba.RootHex() {
		t.Fatalf("Should get a different root when the values are reordered.")
	}
}

func Test_Values(t *testing.T) {
	data := []Data{{x: "a"}, {x: "a"}, {x: "b"}}

	tree, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	values := tree.Values()
	if len(values) != len(data) {
		t.Fatalf("Should keep identical values and drop only the padding, got %d.", len(values))
	}

	for i := range data {
		if !values[i].Equals(data[i]) {
			t.Fatalf("Should get back the values in order, index %d.", i)
		}
	}
}

func Test_ProofAndVerifyData(t *testing.T) {
	data := []Data{{x: "a"}, {x: "b"}, {x: "c"}, {x: "d"}, {x: "e"}}

	tree, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	for _, d := range data {
		if err := tree.VerifyData(d); err != nil {
			t.Fatalf("Should be able to verify %q: %v", d.x, err)
		}

		proof, order, err := tree.Proof(d)
		if err != nil {
			t.Fatalf("Should be able to get a proof for %q: %v", d.x, err)
		}

		hash, _ := d.Hash()
		for i, p := range proof {
			if order[i] == 0 {
				hash = sum(p, hash)
			} else {
				hash = sum(hash, p)
			}
		}

		if !bytes.Equal(hash, tree.MerkleRoot) {
			t.Fatalf("Should be able to rebuild the root from the proof for %q.", d.x)
		}
	}

	if _, _, err := tree.Proof(Data{x: "z"}); err == nil {
		t.Fatalf("Should not get a proof for data not in the tree.")
	}

	tree.Root.Hash = []byte{1}
	tree.MerkleRoot = []byte{1}
	if err := tree.Verify(); err == nil {
		t.Fatalf("Should detect a tampered root.")
	}
}

func Test_RebuildWithHashStrategy(t *testing.T) {
	data := []Data{{x: "a"}, {x: "b"}, {x: "c"}}

	tree, err := merkle.NewTree(data, merkle.WithHashStrategy[Data](md5.New))
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	root := tree.RootHex()

	if err := tree.Rebuild(); err != nil {
		t.Fatalf("Should be able to rebuild the tree: %v", err)
	}

	if tree.RootHex() != root {
		t.Fatalf("Should get back the same root after a rebuild.")
	}

	def, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to build the tree: %v", err)
	}

	if def.RootHex() == root {
		t.Fatalf("Should get a different root with a different hash strategy.")
	}
}
