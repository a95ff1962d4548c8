package service

import (
	"bytes"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(filepath.Join(t.TempDir(), "trees.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestStorageRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	acc := mustBuild(t, []Entry{{Identifier: "a", Balance: big.NewInt(1)}})
	data, err := json.Marshal(acc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	finalRoot, _ := acc.FinalRoot()

	if err := storage.StoreTree(finalRoot.String(), data); err != nil {
		t.Fatalf("StoreTree: %v", err)
	}

	loaded, err := storage.GetTree(finalRoot.String())
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if !bytes.Equal(loaded, data) {
		t.Errorf("stored snapshot differs from loaded snapshot")
	}
}

func TestStorageMissingTree(t *testing.T) {
	storage := newTestStorage(t)
	if _, err := storage.GetTree("12345"); err == nil {
		t.Errorf("GetTree for unknown root should fail")
	}
}
