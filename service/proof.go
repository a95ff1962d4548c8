package service

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// PathElement records one sibling on the walk from a leaf to the root.
// SiblingOnLeft tells the verifier which argument position the sibling takes
// when the pair is rehashed.
type PathElement struct {
	Sibling       fr.Element
	SiblingOnLeft bool
}

// Proof is a self-contained membership proof: verifying it needs no access
// to the tree it was extracted from.
type Proof struct {
	Identifier string
	Balance    *big.Int
	LeafHash   fr.Element
	Path       []PathElement
	Root       fr.Element
	Timestamp  int64
	FinalRoot  fr.Element
}

// Verdict separates the two verification checks so a caller can tell a
// wrong membership claim from a stale or replayed root.
type Verdict struct {
	MerklePathValid bool `json:"merklePathValid"`
	FinalRootValid  bool `json:"finalRootValid"`
	OverallValid    bool `json:"overallValid"`
}

// Extract builds the membership proof for identifier from a finalized tree.
// The sibling at each layer is the adjacent node; when the node pairs with
// itself under the odd-layer rule the node's own hash is recorded as the
// sibling, so the verifier's fold replays the Hash(node, node) step the
// build performed. Absent identifiers return ErrNotFound.
func (a *Accumulator) Extract(identifier string) (*Proof, error) {
	if !a.finalized {
		return nil, ErrNotBuilt
	}

	idx, ok := a.leafIndex[identifier]
	if !ok {
		return nil, ErrNotFound
	}

	leaf := idx
	var path []PathElement
	for li := 0; li < len(a.layers)-1; li++ {
		layer := a.layers[li]
		sibling := idx + 1
		if idx%2 == 1 {
			sibling = idx - 1
		}
		if sibling >= len(layer) {
			sibling = idx
		}
		path = append(path, PathElement{
			Sibling:       layer[sibling],
			SiblingOnLeft: idx%2 == 1,
		})
		idx /= 2
	}

	return &Proof{
		Identifier: a.entries[leaf].Identifier,
		Balance:    new(big.Int).Set(a.entries[leaf].Balance),
		LeafHash:   a.layers[0][leaf],
		Path:       path,
		Root:       a.layers[len(a.layers)-1][0],
		Timestamp:  a.timestamp,
		FinalRoot:  a.finalRoot,
	}, nil
}

// Verify recomputes the leaf hash from the claimed identifier and balance,
// folds the sibling path in recorded order, and checks the result against
// the proof's root. The final root binding is checked independently so the
// caller learns which of the two failed. Verification failures are data,
// not errors; only an unencodable identifier or balance returns an error.
func Verify(identifier string, balance *big.Int, p *Proof) (Verdict, error) {
	if p == nil {
		return Verdict{}, fmt.Errorf("nil proof")
	}
	computed, err := hashLeaf(identifier, balance)
	if err != nil {
		return Verdict{}, err
	}

	for _, pe := range p.Path {
		if pe.SiblingOnLeft {
			computed = hashPair(pe.Sibling, computed)
		} else {
			computed = hashPair(computed, pe.Sibling)
		}
	}

	pathValid := computed.Equal(&p.Root)
	bound := hashPair(p.Root, encodeTimestamp(p.Timestamp))
	finalValid := bound.Equal(&p.FinalRoot)

	return Verdict{
		MerklePathValid: pathValid,
		FinalRootValid:  finalValid,
		OverallValid:    pathValid && finalValid,
	}, nil
}

type pathElementJSON struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

type proofJSON struct {
	Identifier string            `json:"identifier"`
	Balance    string            `json:"balance"`
	LeafHash   string            `json:"leafHash"`
	Proof      []pathElementJSON `json:"proof"`
	Root       string            `json:"root"`
	Timestamp  int64             `json:"timestamp"`
	FinalRoot  string            `json:"finalRoot"`
}

// MarshalJSON emits the transferable proof format. "position" names the side
// the sibling occupies relative to the node being combined.
func (p *Proof) MarshalJSON() ([]byte, error) {
	path := make([]pathElementJSON, len(p.Path))
	for i, pe := range p.Path {
		position := "right"
		if pe.SiblingOnLeft {
			position = "left"
		}
		path[i] = pathElementJSON{Hash: pe.Sibling.String(), Position: position}
	}

	return json.Marshal(proofJSON{
		Identifier: p.Identifier,
		Balance:    p.Balance.String(),
		LeafHash:   p.LeafHash.String(),
		Proof:      path,
		Root:       p.Root.String(),
		Timestamp:  p.Timestamp,
		FinalRoot:  p.FinalRoot.String(),
	})
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var parsed proofJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	balance, ok := new(big.Int).SetString(parsed.Balance, 10)
	if !ok {
		return fmt.Errorf("invalid balance %q", parsed.Balance)
	}

	var leafHash, root, finalRoot fr.Element
	if _, err := leafHash.SetString(parsed.LeafHash); err != nil {
		return fmt.Errorf("invalid leaf hash %q", parsed.LeafHash)
	}
	if _, err := root.SetString(parsed.Root); err != nil {
		return fmt.Errorf("invalid root %q", parsed.Root)
	}
	if _, err := finalRoot.SetString(parsed.FinalRoot); err != nil {
		return fmt.Errorf("invalid final root %q", parsed.FinalRoot)
	}

	path := make([]PathElement, len(parsed.Proof))
	for i, pe := range parsed.Proof {
		if _, err := path[i].Sibling.SetString(pe.Hash); err != nil {
			return fmt.Errorf("path element %d: invalid hash %q", i, pe.Hash)
		}
		switch pe.Position {
		case "left":
			path[i].SiblingOnLeft = true
		case "right":
			path[i].SiblingOnLeft = false
		default:
			return fmt.Errorf("path element %d: invalid position %q", i, pe.Position)
		}
	}

	p.Identifier = parsed.Identifier
	p.Balance = balance
	p.LeafHash = leafHash
	p.Path = path
	p.Root = root
	p.Timestamp = parsed.Timestamp
	p.FinalRoot = finalRoot
	return nil
}
