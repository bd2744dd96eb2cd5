package carrier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parcel-relay/internal/config"
	"github.com/parcel-relay/internal/logger"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNotConfigured 未配置运费接口
	ErrNotConfigured = errors.New("carrier rate api not configured")
	// ErrUnavailable 运费接口调用失败
	ErrUnavailable = errors.New("carrier rate api unavailable")
)

// QuoteRequest 运费查询请求
type QuoteRequest struct {
	Carrier       string  `json:"carrier"`
	OriginCountry string  `json:"origin_country"`
	Country       string  `json:"country"`
	State         string  `json:"state,omitempty"`
	City          string  `json:"city,omitempty"`
	PostalCode    string  `json:"postal_code"`
	Commercial    bool    `json:"is_commercial"`
	WeightKg      float64 `json:"weight_kg"`
	DeclaredValue int64   `json:"declared_value"`
}

// Rate 承运商服务报价（日元）
type Rate struct {
	ServiceCode string `json:"service_code"`
	ServiceName string `json:"service_name"`
	Amount      int64  `json:"amount"`
	TransitDays int    `json:"transit_days"`
}

type quoteResponse struct {
	Rates []Rate `json:"rates"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client 运费接口客户端，单次超时后最多重试一次
type Client struct {
	http          *resty.Client
	apiKey        string
	originCountry string
	configured    bool
}

// NewClient 创建运费接口客户端
func NewClient(cfg config.CarrierConfig) *Client {
	retry := cfg.RetryCount
	if retry < 0 {
		retry = 0
	}
	wait := time.Duration(cfg.RetryWaitMS) * time.Millisecond
	if wait <= 0 {
		wait = 300 * time.Millisecond
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetTimeout(cfg.Timeout()).
		SetRetryCount(retry).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(2*wait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests
		})
	origin := strings.ToUpper(strings.TrimSpace(cfg.OriginCountry))
	if origin == "" {
		origin = "JP"
	}
	return &Client{
		http:          httpClient,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		originCountry: origin,
		configured:    strings.TrimSpace(cfg.BaseURL) != "",
	}
}

// Quote 查询可选服务与价格
func (c *Client) Quote(ctx context.Context, req QuoteRequest) ([]Rate, error) {
	if c == nil || !c.configured {
		return nil, ErrNotConfigured
	}
	if req.OriginCountry == "" {
		req.OriginCountry = c.originCountry
	}
	var result quoteResponse
	var apiErr errorResponse
	r := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr)
	if c.apiKey != "" {
		r.SetAuthToken(c.apiKey)
	}
	started := time.Now()
	resp, err := r.Post("/rates")
	if err != nil {
		logger.Named("carrier").Warnw("carrier_quote_failed",
			"carrier", req.Carrier,
			"country", req.Country,
			"elapsed_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		logger.Named("carrier").Warnw("carrier_quote_rejected",
			"carrier", req.Carrier,
			"status", resp.StatusCode(),
			"message", apiErr.Message,
		)
		return nil, fmt.Errorf("%w: status %d %s", ErrUnavailable, resp.StatusCode(), apiErr.Message)
	}
	rates := make([]Rate, 0, len(result.Rates))
	for _, rate := range result.Rates {
		if strings.TrimSpace(rate.ServiceCode) == "" || rate.Amount <= 0 {
			continue
		}
		rates = append(rates, rate)
	}
	return rates, nil
}
