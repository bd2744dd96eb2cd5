package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/parcel-relay/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.CarrierConfig{
		BaseURL:        url,
		APIKey:         "secret",
		TimeoutSeconds: 2,
		RetryCount:     1,
		RetryWaitMS:    10,
	})
}

func TestQuoteReturnsRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rates" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req QuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if req.OriginCountry != "JP" || req.PostalCode != "90210" {
			t.Errorf("unexpected request body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rates":[{"service_code":"FEDEX_IP","service_name":"International Priority","amount":5400,"transit_days":3},{"service_code":"","amount":100}]}`))
	}))
	defer server.Close()

	rates, err := newTestClient(server.URL).Quote(context.Background(), QuoteRequest{
		Carrier:    FedEx,
		Country:    "US",
		State:      "CA",
		PostalCode: "90210",
		WeightKg:   1.2,
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if len(rates) != 1 || rates[0].ServiceCode != "FEDEX_IP" || rates[0].Amount != 5400 {
		t.Fatalf("unexpected rates: %+v", rates)
	}
}

func TestQuoteRetriesOnceThenFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Quote(context.Background(), QuoteRequest{Carrier: FedEx, Country: "US"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected one retry (2 calls), got %d", got)
	}
}

func TestQuoteNotConfigured(t *testing.T) {
	_, err := NewClient(config.CarrierConfig{}).Quote(context.Background(), QuoteRequest{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestAddressRules(t *testing.T) {
	cases := []struct {
		country string
		ems     bool
		state   bool
	}{
		{"United States", false, true},
		{" usa ", false, true},
		{"Canada", true, true},
		{"Iceland", false, false},
		{"Georgia", false, false},
		{"France", true, false},
	}
	for _, tc := range cases {
		if got := EMSAllowed(tc.country); got != tc.ems {
			t.Fatalf("EMSAllowed(%q) = %v", tc.country, got)
		}
		if got := RequiresState(tc.country); got != tc.state {
			t.Fatalf("RequiresState(%q) = %v", tc.country, got)
		}
	}
	if got := NormalizePostalCode(" sw1a 1aa "); got != "SW1A1AA" {
		t.Fatalf("unexpected postal code: %q", got)
	}
}
