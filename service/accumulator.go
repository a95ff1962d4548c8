package service

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Accumulator is a Merkle commitment over an ordered list of
// (identifier, balance) entries. Lifecycle is strictly forward:
// empty -> built -> finalized. Layers are never mutated after Build and a
// finalized accumulator is safe to share read-only.
type Accumulator struct {
	entries   []Entry
	layers    [][]fr.Element
	leafIndex map[string]int
	timestamp int64
	finalRoot fr.Element
	built     bool
	finalized bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		leafIndex: make(map[string]int),
	}
}

// Build hashes every entry into layer 0 in input order, then repeatedly
// pairs adjacent nodes left-to-right until a single-node layer remains.
// A lone node at the end of an odd layer is combined with itself, never
// dropped; changing that policy would break every published root.
func (a *Accumulator) Build(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyInput
	}

	// Copy the entries so later caller-side mutation of the slice or its
	// balances cannot corrupt snapshots or proof metadata.
	owned := make([]Entry, len(entries))
	leaves := make([]fr.Element, len(entries))
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		h, err := hashLeaf(e.Identifier, e.Balance)
		if err != nil {
			return err
		}
		owned[i] = Entry{
			Identifier: e.Identifier,
			Balance:    new(big.Int).Set(e.Balance),
		}
		leaves[i] = h
		if _, seen := index[e.Identifier]; !seen {
			index[e.Identifier] = i
		}
	}

	layers := [][]fr.Element{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]fr.Element, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next[i/2] = hashPair(left, right)
		}
		layers = append(layers, next)
		current = next
	}

	a.entries = owned
	a.layers = layers
	a.leafIndex = index
	a.built = true
	return nil
}

// Finalize binds the root to a freshness timestamp:
// finalRoot = Hash(root, timestamp). Calling it again overwrites the
// previous binding; callers are expected to call it exactly once.
func (a *Accumulator) Finalize(timestamp int64) error {
	if !a.built {
		return ErrNotBuilt
	}
	root := a.layers[len(a.layers)-1][0]
	a.timestamp = timestamp
	a.finalRoot = hashPair(root, encodeTimestamp(timestamp))
	a.finalized = true
	return nil
}

func (a *Accumulator) Root() (fr.Element, error) {
	if !a.built {
		return fr.Element{}, ErrNotBuilt
	}
	return a.layers[len(a.layers)-1][0], nil
}

func (a *Accumulator) FinalRoot() (fr.Element, error) {
	if !a.finalized {
		return fr.Element{}, ErrNotBuilt
	}
	return a.finalRoot, nil
}

func (a *Accumulator) Timestamp() int64 {
	return a.timestamp
}

func (a *Accumulator) LeafCount() int {
	if !a.built {
		return 0
	}
	return len(a.layers[0])
}

func (a *Accumulator) LayerCount() int {
	return len(a.layers)
}

type snapshotNode struct {
	Hash       string `json:"hash"`
	Identifier string `json:"identifier,omitempty"`
	Balance    string `json:"balance,omitempty"`
}

type snapshotEntry struct {
	Identifier string `json:"identifier"`
	Balance    string `json:"balance"`
}

type snapshotJSON struct {
	Root      string           `json:"root"`
	Timestamp int64            `json:"timestamp"`
	FinalRoot string           `json:"finalRoot"`
	Entries   []snapshotEntry  `json:"entries"`
	Layers    [][]snapshotNode `json:"layers"`
}

// MarshalJSON snapshots a finalized tree. Field elements travel as decimal
// strings; identifier and balance appear only on layer 0 nodes. Left/right
// child pointers are not persisted, layer adjacency reconstructs them.
func (a *Accumulator) MarshalJSON() ([]byte, error) {
	if !a.finalized {
		return nil, ErrNotBuilt
	}

	entries := make([]snapshotEntry, len(a.entries))
	for i, e := range a.entries {
		entries[i] = snapshotEntry{
			Identifier: e.Identifier,
			Balance:    e.Balance.String(),
		}
	}

	layers := make([][]snapshotNode, len(a.layers))
	for li, layer := range a.layers {
		nodes := make([]snapshotNode, len(layer))
		for i, h := range layer {
			nodes[i] = snapshotNode{Hash: h.String()}
			if li == 0 {
				nodes[i].Identifier = a.entries[i].Identifier
				nodes[i].Balance = a.entries[i].Balance.String()
			}
		}
		layers[li] = nodes
	}

	root := a.layers[len(a.layers)-1][0]
	data := snapshotJSON{
		Root:      root.String(),
		Timestamp: a.timestamp,
		FinalRoot: a.finalRoot.String(),
		Entries:   entries,
		Layers:    layers,
	}

	return json.Marshal(data)
}

// UnmarshalJSON loads a snapshot without rehashing the captured leaves; the
// snapshot is a cache of a previous build, not a trust anchor. Verification
// always rehashes independently. Layer-shape invariants are checked so a
// loaded tree produces exactly the proofs the original build did.
func (a *Accumulator) UnmarshalJSON(data []byte) error {
	var parsed snapshotJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	if len(parsed.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrMalformedSnapshot)
	}
	if len(parsed.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrMalformedSnapshot)
	}
	if len(parsed.Layers[0]) != len(parsed.Entries) {
		return fmt.Errorf("%w: leaf layer has %d nodes for %d entries",
			ErrMalformedSnapshot, len(parsed.Layers[0]), len(parsed.Entries))
	}
	for i := 1; i < len(parsed.Layers); i++ {
		want := (len(parsed.Layers[i-1]) + 1) / 2
		if len(parsed.Layers[i]) != want {
			return fmt.Errorf("%w: layer %d has %d nodes, want %d",
				ErrMalformedSnapshot, i, len(parsed.Layers[i]), want)
		}
	}
	top := parsed.Layers[len(parsed.Layers)-1]
	if len(top) != 1 {
		return fmt.Errorf("%w: top layer has %d nodes", ErrMalformedSnapshot, len(top))
	}
	if top[0].Hash != parsed.Root {
		return fmt.Errorf("%w: root does not match top layer", ErrMalformedSnapshot)
	}

	entries := make([]Entry, len(parsed.Entries))
	index := make(map[string]int, len(parsed.Entries))
	for i, e := range parsed.Entries {
		bal, ok := new(big.Int).SetString(e.Balance, 10)
		if !ok || bal.Sign() < 0 {
			return fmt.Errorf("%w: entry %d has invalid balance %q",
				ErrMalformedSnapshot, i, e.Balance)
		}
		entries[i] = Entry{Identifier: e.Identifier, Balance: bal}
		if _, seen := index[e.Identifier]; !seen {
			index[e.Identifier] = i
		}
	}

	layers := make([][]fr.Element, len(parsed.Layers))
	for li, layer := range parsed.Layers {
		row := make([]fr.Element, len(layer))
		for i, n := range layer {
			if _, err := row[i].SetString(n.Hash); err != nil {
				return fmt.Errorf("%w: layer %d node %d: invalid hash %q",
					ErrMalformedSnapshot, li, i, n.Hash)
			}
			if li == 0 {
				if n.Identifier != parsed.Entries[i].Identifier {
					return fmt.Errorf("%w: leaf %d identifier mismatch",
						ErrMalformedSnapshot, i)
				}
				if n.Balance != parsed.Entries[i].Balance {
					return fmt.Errorf("%w: leaf %d balance mismatch",
						ErrMalformedSnapshot, i)
				}
			}
		}
		layers[li] = row
	}

	var finalRoot fr.Element
	if _, err := finalRoot.SetString(parsed.FinalRoot); err != nil {
		return fmt.Errorf("%w: invalid final root %q", ErrMalformedSnapshot, parsed.FinalRoot)
	}

	a.entries = entries
	a.layers = layers
	a.leafIndex = index
	a.timestamp = parsed.Timestamp
	a.finalRoot = finalRoot
	a.built = true
	a.finalized = true
	return nil
}
