package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// AdminHandler операторские действия. Роль проверяет RequireRole в роутере.
type AdminHandler struct {
	escrow  *service.EscrowService
	sweeper *service.SweeperService
	now     func() time.Time
}

func NewAdminHandler(escrow *service.EscrowService, sweeper *service.SweeperService) *AdminHandler {
	return &AdminHandler{escrow: escrow, sweeper: sweeper, now: time.Now}
}

// ReleaseProject POST /admin/projects/:id/release
func (h *AdminHandler) ReleaseProject(c *gin.Context) {
	operatorID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.AdminReleaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.escrow.AdminRelease(c.Request.Context(), projectID, operatorID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ExpireSweep POST /admin/sweeps/expire
func (h *AdminHandler) ExpireSweep(c *gin.Context) {
	report, err := h.sweeper.ExpireDue(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// ReconcileSweep POST /admin/sweeps/reconcile
func (h *AdminHandler) ReconcileSweep(c *gin.Context) {
	report, err := h.sweeper.Reconcile(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// ReconcileWallets POST /admin/wallets/reconcile
// Расхождения замораживают кошельки и возвращаются оператору.
func (h *AdminHandler) ReconcileWallets(c *gin.Context) {
	discrepancies, err := h.escrow.ReconcileWallets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"discrepancies": discrepancies})
}
