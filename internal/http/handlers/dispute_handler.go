package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// multipartOverhead запас на заголовки multipart поверх лимита файла.
const multipartOverhead = 64 << 10

type DisputeHandler struct {
	svc            *service.DisputeService
	maxUploadBytes int64
}

func NewDisputeHandler(s *service.DisputeService, maxUploadMB int64) *DisputeHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &DisputeHandler{svc: s, maxUploadBytes: maxUploadMB << 20}
}

// Raise POST /disputes
func (h *DisputeHandler) Raise(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.RaiseDisputeRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	dispute, err := h.svc.Raise(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispute)
}

// Get GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	disputeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	dispute, err := h.svc.Get(c.Request.Context(), disputeID, userID, isOperator(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// ListMine GET /disputes
func (h *DisputeHandler) ListMine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	disputes, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, disputes)
}

// AttachEvidence POST /disputes/:id/evidence (multipart, поле file)
func (h *DisputeHandler) AttachEvidence(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	disputeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл не передан или слишком большой")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "не удалось прочитать файл")
		return
	}
	defer file.Close()

	dispute, err := h.svc.AttachEvidence(c.Request.Context(), disputeID, userID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dispute)
}

// Resolve POST /admin/disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	operatorID, ok := requireUser(c)
	if !ok {
		return
	}
	disputeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}
	outcome, err := req.Parse()
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.svc.Resolve(c.Request.Context(), disputeID, operatorID, outcome, req.SplitRatio, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.DisputeResolutionResponse{
		DisputeID:  disputeID.String(),
		Outcome:    string(outcome),
		Settlement: result,
	})
}
