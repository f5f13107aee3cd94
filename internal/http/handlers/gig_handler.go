package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// GigHandler маршруты срочных гигов со стороны заказчика.
type GigHandler struct {
	gigs *service.GigService
}

func NewGigHandler(gigs *service.GigService) *GigHandler {
	return &GigHandler{gigs: gigs}
}

// Create POST /gigs
func (h *GigHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.CreateGigRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.gigs.Create(c.Request.Context(), userID, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get GET /gigs/:id
func (h *GigHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	gig, err := h.gigs.Get(c.Request.Context(), gigID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gig)
}

// History GET /gigs/:id/history
func (h *GigHandler) History(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	history, err := h.gigs.History(c.Request.Context(), gigID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}
