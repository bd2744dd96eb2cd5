package public

import (
	"context"

	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

type packagePayment func(ctx context.Context, userID, packageID uint) (*service.PaymentResult, error)

func (h *Handler) handlePackagePayment(c *gin.Context, pay packagePayment) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := pay(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, "error.payment_failed")
		return
	}
	response.Success(c, result)
}

// PayDomesticShipping 支付国内段运费，共享账单的包裹一并结清
func (h *Handler) PayDomesticShipping(c *gin.Context) {
	h.handlePackagePayment(c, h.PaymentService.PayDomesticShipping)
}

// PayAdditionalShipping 支付补充运费
func (h *Handler) PayAdditionalShipping(c *gin.Context) {
	h.handlePackagePayment(c, h.PaymentService.PayAdditionalShipping)
}

// PayCancellationFee 支付取消购买手续费
func (h *Handler) PayCancellationFee(c *gin.Context) {
	h.handlePackagePayment(c, h.PaymentService.PayCancellationFee)
}

// PayStorage 支付超期仓储费
func (h *Handler) PayStorage(c *gin.Context) {
	h.handlePackagePayment(c, h.PaymentService.PayStorage)
}

// RequestDisposal 申请销毁包裹并支付销毁费
func (h *Handler) RequestDisposal(c *gin.Context) {
	h.handlePackagePayment(c, h.PaymentService.RequestDisposal)
}
