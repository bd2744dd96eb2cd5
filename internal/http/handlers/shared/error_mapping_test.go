package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedEnvelope struct {
	StatusCode int                    `json:"status_code"`
	Msg        string                 `json:"msg"`
	Data       map[string]interface{} `json:"data"`
}

func respondMapped(t *testing.T, err error, lang string, rules ...MappedError) mappedEnvelope {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?lang="+lang, nil)
	c.Set("request_id", "req-1")

	RespondWithMappedError(c, err, rules, response.CodeInternal, "error.package_update_failed")

	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var env mappedEnvelope
	if decodeErr := json.Unmarshal(w.Body.Bytes(), &env); decodeErr != nil {
		t.Fatalf("decode envelope failed: %v body=%s", decodeErr, w.Body.String())
	}
	return env
}

func TestRespondWithMappedErrorInsufficientBalance(t *testing.T) {
	err := fmt.Errorf("pay storage: %w", &service.InsufficientBalanceError{
		Required:  models.Yen(500),
		Available: models.Yen(400),
	})
	env := respondMapped(t, err, "en-US")
	if env.StatusCode != response.CodePaymentRequired {
		t.Fatalf("code want 402 got %d", env.StatusCode)
	}
	if env.Msg != "Insufficient balance, 100 JPY short" {
		t.Fatalf("message mismatch: %q", env.Msg)
	}
	if env.Data["shortfall"] != float64(100) || env.Data["request_id"] != "req-1" {
		t.Fatalf("data mismatch: %v", env.Data)
	}
}

func TestRespondWithMappedErrorIneligibleCarriesReasons(t *testing.T) {
	err := &service.IneligibleTransitionError{
		Action:  service.ActionConsolidate,
		Reasons: []service.BlockReason{service.ReasonOpenClaim},
		PackageReasons: map[uint][]service.BlockReason{
			7: {service.ReasonOpenClaim},
		},
	}
	env := respondMapped(t, err, "zh-CN")
	if env.StatusCode != response.CodeUnprocessable {
		t.Fatalf("code want 422 got %d", env.StatusCode)
	}
	reasons, ok := env.Data["reasons"].([]interface{})
	if !ok || len(reasons) != 1 || reasons[0] != string(service.ReasonOpenClaim) {
		t.Fatalf("reasons mismatch: %v", env.Data)
	}
	perPackage, ok := env.Data["package_reasons"].(map[string]interface{})
	if !ok || perPackage["7"] == nil {
		t.Fatalf("package reasons mismatch: %v", env.Data)
	}
}

func TestRespondWithMappedErrorListsCarrierOptions(t *testing.T) {
	err := &service.IneligibleTransitionError{
		Action:         service.ActionConsolidate,
		Reasons:        []service.BlockReason{service.ReasonCarrierChoiceRequired},
		CarrierOptions: []string{"ems", "fedex"},
	}
	env := respondMapped(t, err, "en-US")
	options, ok := env.Data["carrier_options"].([]interface{})
	if !ok || len(options) != 2 || options[0] != "ems" || options[1] != "fedex" {
		t.Fatalf("carrier options mismatch: %v", env.Data)
	}

	env = respondMapped(t, &service.IneligibleTransitionError{
		Action:  service.ActionConsolidate,
		Reasons: []service.BlockReason{service.ReasonOpenClaim},
	}, "en-US")
	if _, present := env.Data["carrier_options"]; present {
		t.Fatalf("carrier options must be omitted when empty: %v", env.Data)
	}
}

func TestRespondWithMappedErrorRuleOrder(t *testing.T) {
	custom := errors.New("custom")
	env := respondMapped(t, custom, "en-US", MappedError{Target: custom, Code: response.CodeForbidden, Key: "error.forbidden"})
	if env.StatusCode != response.CodeForbidden {
		t.Fatalf("explicit rule must win, got %d", env.StatusCode)
	}

	env = respondMapped(t, fmt.Errorf("load: %w", service.ErrPackageNotFound), "en-US")
	if env.StatusCode != response.CodeNotFound || env.Msg != "Package not found" {
		t.Fatalf("not found mapping mismatch: %+v", env)
	}

	env = respondMapped(t, &service.ResourceLockedError{Resource: "address", ID: 3, Reason: "in_transit"}, "en-US")
	if env.StatusCode != response.CodeLocked || env.Data["reason"] != "in_transit" {
		t.Fatalf("locked mapping mismatch: %+v", env)
	}

	env = respondMapped(t, &service.ExternalDependencyError{Dependency: "carrier", Err: errors.New("timeout")}, "en-US")
	if env.StatusCode != response.CodeUnavailable || env.Data["retryable"] != true {
		t.Fatalf("external mapping mismatch: %+v", env)
	}

	env = respondMapped(t, errors.New("boom"), "en-US")
	if env.StatusCode != response.CodeInternal {
		t.Fatalf("fallback want 500 got %d", env.StatusCode)
	}
}
