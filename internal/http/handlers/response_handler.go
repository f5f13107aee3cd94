package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// ResponseHandler отклики исполнителей и выбор заказчика.
type ResponseHandler struct {
	arbiter *service.ArbiterService
}

func NewResponseHandler(arbiter *service.ArbiterService) *ResponseHandler {
	return &ResponseHandler{arbiter: arbiter}
}

// Respond POST /gigs/:id/respond
func (h *ResponseHandler) Respond(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RespondRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := valueobject.NewResponseAction(req.Action)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.arbiter.Respond(c.Request.Context(), gigID, userID, action, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Select POST /gigs/:id/select
func (h *ResponseHandler) Select(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.SelectProviderRequest
	if !bindJSON(c, &req) {
		return
	}
	responseID, err := uuid.Parse(req.ResponseID)
	if err != nil {
		response.BadRequest(c, "response_id должен быть валидным UUID")
		return
	}

	project, err := h.arbiter.SelectProvider(c.Request.Context(), gigID, userID, responseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// List GET /gigs/:id/responses
func (h *ResponseHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	responses, err := h.arbiter.ListResponses(c.Request.Context(), gigID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, responses)
}
