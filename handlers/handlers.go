package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"liability-proof-service/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.LiabilityService
}

func NewHandler(svc *service.LiabilityService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Build(c *gin.Context) {
	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	entries := make([]service.Entry, len(req.Entries))
	for i, e := range req.Entries {
		balance, ok := new(big.Int).SetString(e.Balance, 10)
		if !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid balance: " + e.Balance})
			return
		}
		entries[i] = service.Entry{Identifier: e.Identifier, Balance: balance}
	}

	result, err := h.svc.BuildTree(entries, req.Timestamp)
	if err != nil {
		if errors.Is(err, service.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, BuildResponse{
		Root:       result.Root,
		FinalRoot:  result.FinalRoot,
		Timestamp:  result.Timestamp,
		LeafCount:  result.LeafCount,
		LayerCount: result.LayerCount,
	})
}

func (h *Handler) GetTree(c *gin.Context) {
	finalRoot := c.Param("finalRoot")

	tree, err := h.svc.GetTree(finalRoot)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "tree not found"})
		return
	}

	c.Data(http.StatusOK, "application/json", tree)
}

func (h *Handler) Prove(c *gin.Context) {
	var req ProveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if len(req.Identifiers) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no identifiers"})
		return
	}

	result, err := h.svc.GenerateProofs(req.FinalRoot, req.Identifiers)
	if err != nil {
		if errors.Is(err, service.ErrMalformedSnapshot) {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	if len(result.Proofs) == 0 {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "no proofs generated"})
		return
	}

	proofs := make([]json.RawMessage, len(result.Proofs))
	for i, p := range result.Proofs {
		data, err := json.Marshal(p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		proofs[i] = data
	}

	c.JSON(http.StatusOK, ProveResponse{
		Root:      result.Root,
		Timestamp: result.Timestamp,
		FinalRoot: result.FinalRoot,
		Proofs:    proofs,
	})
}

func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	balance, ok := new(big.Int).SetString(req.Balance, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid balance: " + req.Balance})
		return
	}

	var proof service.Proof
	if err := json.Unmarshal(req.Proof, &proof); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	verdict, err := h.svc.VerifyProof(req.Identifier, balance, &proof)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, verdict)
}
