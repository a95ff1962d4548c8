package service

import (
	"errors"
	"math/big"
)

var (
	// ErrEmptyInput is returned by Build when the entry list is empty; an
	// empty tree has no root.
	ErrEmptyInput = errors.New("build requires at least one entry")

	// ErrNotBuilt is returned when an operation needs a built (and, for
	// proof extraction, finalized) tree and gets one that is not.
	ErrNotBuilt = errors.New("tree has not been built and finalized")

	// ErrNotFound is the sentinel for an identifier absent from the tree.
	// Expected and recoverable, check with errors.Is.
	ErrNotFound = errors.New("identifier not present in tree")

	// ErrMalformedSnapshot marks snapshot data with missing fields or
	// violated layer-shape invariants. Fatal to the load, not the process.
	ErrMalformedSnapshot = errors.New("malformed tree snapshot")
)

// Entry is one (identifier, balance) pair. Input order determines leaf
// position and therefore every proof path, so it is preserved end-to-end.
type Entry struct {
	Identifier string
	Balance    *big.Int
}

type BuildResult struct {
	Root       string
	FinalRoot  string
	Timestamp  int64
	LeafCount  int
	LayerCount int
}

type BatchProofResult struct {
	Root      string
	Timestamp int64
	FinalRoot string
	Proofs    []*Proof
}
