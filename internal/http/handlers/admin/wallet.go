package admin

import (
	"fmt"
	"strings"
	"time"

	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletAdjustRequest 后台调整余额，正数入账负数扣款
type WalletAdjustRequest struct {
	Delta  models.Money `json:"delta"`
	Remark string       `json:"remark"`
}

// GetUserWallet 查看用户钱包
func (h *Handler) GetUserWallet(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	account, err := h.WalletService.GetAccount(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.wallet_fetch_failed", err)
		return
	}
	response.Success(c, account)
}

// ListUserWalletTransactions 查看用户钱包流水，支持 created_from/created_to (RFC3339)
func (h *Handler) ListUserWalletTransactions(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePage(c)
	filter := repository.WalletTransactionListFilter{
		Page:      page,
		PageSize:  pageSize,
		UserID:    userID,
		Type:      strings.TrimSpace(c.Query("type")),
		Direction: strings.TrimSpace(c.Query("direction")),
	}
	if from, ok := parseTimeQuery(c, "created_from"); ok {
		filter.CreatedFrom = from
	} else {
		return
	}
	if to, ok := parseTimeQuery(c, "created_to"); ok {
		filter.CreatedTo = to
	} else {
		return
	}
	items, total, err := h.WalletService.ListTransactions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.wallet_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// AdjustUserWallet 后台调整余额
func (h *Handler) AdjustUserWallet(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req WalletAdjustRequest
	if !bindJSON(c, &req) {
		return
	}
	reference := fmt.Sprintf("admin:%d", currentAdminID(c))
	txn, err := h.WalletService.AdminAdjustBalance(service.WalletAdjustInput{
		UserID: userID,
		Delta:  req.Delta,
		Remark: strings.TrimSpace(req.Remark),
	}, reference)
	if err != nil {
		respondWithMappedError(c, err, "error.wallet_adjust_failed")
		return
	}
	requestLog(c).Infow("admin_wallet_adjusted",
		"operator_admin_id", currentAdminID(c),
		"user_id", userID,
		"delta", req.Delta.String(),
	)
	response.Success(c, txn)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return nil, false
	}
	return &parsed, true
}
