package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// ProjectHandler проект после выбора: подтверждение исполнителем и завершение заказчиком.
type ProjectHandler struct {
	gigs   *service.GigService
	escrow *service.EscrowService
}

func NewProjectHandler(gigs *service.GigService, escrow *service.EscrowService) *ProjectHandler {
	return &ProjectHandler{gigs: gigs, escrow: escrow}
}

// Get GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	project, err := h.gigs.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// AcceptAgreement POST /gigs/:id/accept-agreement
// Исполнитель подтверждает условия, деньги списываются в escrow.
func (h *ProjectHandler) AcceptAgreement(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.gigs.ProjectForGig(ctx, gigID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	project, err = h.escrow.CaptureAndHoldInEscrow(ctx, project.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Complete POST /gigs/:id/complete
func (h *ProjectHandler) Complete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	project, err := h.gigs.ProjectForGig(ctx, gigID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.escrow.Release(ctx, project.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
