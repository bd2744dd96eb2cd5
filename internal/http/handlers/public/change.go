package public

import (
	"strconv"
	"strings"

	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/repository"

	"github.com/gin-gonic/gin"
)

// MarkNotificationsReadRequest 标记通知已读
type MarkNotificationsReadRequest struct {
	IDs []uint `json:"ids"`
}

// ListChanges 轮询变更事件，since_id 为上次收到的最大 ID
func (h *Handler) ListChanges(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	sinceID, err := strconv.ParseUint(c.DefaultQuery("since_id", "0"), 10, 64)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	changes, err := h.NotificationService.ListChanges(repository.ChangeListFilter{
		UserID:     uid,
		SinceID:    uint(sinceID),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
		Limit:      limit,
	})
	if err != nil {
		respondWithMappedError(c, err, "error.change_fetch_failed")
		return
	}
	response.Success(c, changes)
}

// ListNotifications 当前用户的通知
func (h *Handler) ListNotifications(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePage(c)
	items, total, err := h.NotificationService.ListNotifications(repository.NotificationListFilter{
		Page:       page,
		PageSize:   pageSize,
		UserID:     uid,
		UnreadOnly: c.Query("unread") == "1" || c.Query("unread") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.notification_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// MarkNotificationsRead 标记已读，ids 为空时全部标记
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req MarkNotificationsReadRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.NotificationService.MarkRead(uid, req.IDs); err != nil {
		respondError(c, response.CodeInternal, "error.notification_update_failed", err)
		return
	}
	response.Success(c, gin.H{"updated": true})
}
