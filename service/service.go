package service

import (
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"time"
)

type LiabilityService struct {
	storage *Storage
}

func NewLiabilityService(storage *Storage) *LiabilityService {
	return &LiabilityService{storage: storage}
}

// BuildTree builds and finalizes a tree over the entries, stores the
// snapshot keyed by its final root, and reports the commitment values. A
// zero timestamp means "now" in epoch milliseconds.
func (s *LiabilityService) BuildTree(entries []Entry, timestamp int64) (*BuildResult, error) {
	acc := NewAccumulator()
	if err := acc.Build(entries); err != nil {
		return nil, err
	}

	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}
	if err := acc.Finalize(timestamp); err != nil {
		return nil, err
	}

	data, err := json.Marshal(acc)
	if err != nil {
		return nil, err
	}

	root, _ := acc.Root()
	finalRoot, _ := acc.FinalRoot()

	if err := s.storage.StoreTree(finalRoot.String(), data); err != nil {
		return nil, err
	}

	return &BuildResult{
		Root:       root.String(),
		FinalRoot:  finalRoot.String(),
		Timestamp:  timestamp,
		LeafCount:  acc.LeafCount(),
		LayerCount: acc.LayerCount(),
	}, nil
}

func (s *LiabilityService) GetTree(finalRoot string) (json.RawMessage, error) {
	return s.storage.GetTree(finalRoot)
}

// GenerateProofs loads the snapshot stored under finalRoot and extracts one
// proof per requested identifier. Identifiers not in the tree are skipped
// with a log line rather than failing the whole batch.
func (s *LiabilityService) GenerateProofs(finalRoot string, identifiers []string) (*BatchProofResult, error) {
	data, err := s.storage.GetTree(finalRoot)
	if err != nil {
		return nil, err
	}

	acc := NewAccumulator()
	if err := json.Unmarshal(data, acc); err != nil {
		return nil, err
	}

	var proofs []*Proof
	for _, id := range identifiers {
		proof, err := acc.Extract(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Printf("skipping %s: not in tree", id)
				continue
			}
			return nil, err
		}
		proofs = append(proofs, proof)
	}

	root, _ := acc.Root()
	bound, _ := acc.FinalRoot()

	return &BatchProofResult{
		Root:      root.String(),
		Timestamp: acc.Timestamp(),
		FinalRoot: bound.String(),
		Proofs:    proofs,
	}, nil
}

// VerifyProof is stateless: it needs only the proof artifact and the claimed
// identifier and balance, never the stored tree.
func (s *LiabilityService) VerifyProof(identifier string, balance *big.Int, proof *Proof) (Verdict, error) {
	return Verify(identifier, balance, proof)
}
