package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadvault/leadvault/pkg/response"

	"github.com/leadvault/leadvault/internal/services"
)

// BuyerHandler exposes lead CRUD over HTTP. All routes run behind the auth
// middleware, so the requester identity is always present.
type BuyerHandler struct {
	buyers *services.BuyerService
}

// NewBuyerHandler wires the lead endpoints.
func NewBuyerHandler(buyers *services.BuyerService) (*BuyerHandler, error) {
	if buyers == nil {
		return nil, errors.New("buyer handler: buyer service is required")
	}
	return &BuyerHandler{buyers: buyers}, nil
}

// List returns a filtered, sorted page of leads with pagination metadata.
func (h *BuyerHandler) List(c *gin.Context) {
	result, err := h.buyers.List(requestContext(c), listOptionsFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"buyers":     result.Buyers,
		"pagination": response.NewPagination(result.Page, result.Limit, result.TotalCount),
	})
}

// Get returns one lead with its most recent history entries.
func (h *BuyerHandler) Get(c *gin.Context) {
	buyer, history, err := h.buyers.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"buyer":   buyer,
		"history": history,
	})
}

// Create captures a new lead owned by the requester.
func (h *BuyerHandler) Create(c *gin.Context) {
	var in services.BuyerInput
	if !bindJSON(c, &in) {
		return
	}

	buyer, err := h.buyers.Create(requestContext(c), currentUserID(c), &in)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, buyer)
}

type updateBuyerRequest struct {
	services.BuyerInput
	// UpdatedAt, when supplied, is the version the client last observed; the
	// update is rejected with 409 if the stored row has moved past it.
	UpdatedAt *time.Time `json:"updatedAt"`
}

// Update edits a lead with an optional optimistic-concurrency check.
func (h *BuyerHandler) Update(c *gin.Context) {
	var req updateBuyerRequest
	if !bindJSON(c, &req) {
		return
	}

	buyer, err := h.buyers.Update(requestContext(c), currentUserID(c), c.Param("id"), &req.BuyerInput, req.UpdatedAt)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, buyer)
}

// Delete removes a lead owned by the requester.
func (h *BuyerHandler) Delete(c *gin.Context) {
	if err := h.buyers.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Lead deleted")
}
