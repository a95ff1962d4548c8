package handlers

import "encoding/json"

type EntryInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Balance    string `json:"balance" binding:"required"`
}

type BuildRequest struct {
	Entries   []EntryInput `json:"entries" binding:"required"`
	Timestamp int64        `json:"timestamp"`
}

type BuildResponse struct {
	Root       string `json:"root"`
	FinalRoot  string `json:"finalRoot"`
	Timestamp  int64  `json:"timestamp"`
	LeafCount  int    `json:"leafCount"`
	LayerCount int    `json:"layerCount"`
}

type ProveRequest struct {
	FinalRoot   string   `json:"finalRoot" binding:"required"`
	Identifiers []string `json:"identifiers" binding:"required"`
}

type ProveResponse struct {
	Root      string            `json:"root"`
	Timestamp int64             `json:"timestamp"`
	FinalRoot string            `json:"finalRoot"`
	Proofs    []json.RawMessage `json:"proofs"`
}

type VerifyRequest struct {
	Identifier string          `json:"identifier" binding:"required"`
	Balance    string          `json:"balance" binding:"required"`
	Proof      json.RawMessage `json:"proof" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
