package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/dto"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// WalletHandler кошельки исполнителей и вывод средств.
type WalletHandler struct {
	escrow *service.EscrowService
}

func NewWalletHandler(escrow *service.EscrowService) *WalletHandler {
	return &WalletHandler{escrow: escrow}
}

// Get GET /wallet
func (h *WalletHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	wallets, err := h.escrow.GetWallets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.WalletResponse{Wallets: wallets})
}

// Transactions GET /wallet/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	txs, err := h.escrow.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, txs)
}

// Withdraw POST /wallet/withdrawals
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.escrow.Withdraw(c.Request.Context(), userID, req.Currency, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}
