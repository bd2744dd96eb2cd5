package admin

import (
	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var walletErrorRules = []handlershared.MappedError{
	{Target: service.ErrWalletInvalidAmount, Code: response.CodeBadRequest, Key: "error.wallet_amount_invalid"},
}

func respondWithMappedError(c *gin.Context, err error, fallbackKey string) {
	handlershared.RespondWithMappedError(c, err, walletErrorRules, response.CodeInternal, fallbackKey)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParseIDParam(c, name)
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return false
	}
	return true
}
