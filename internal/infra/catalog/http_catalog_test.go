//go:build !integration

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pravartak01/shlokayug-enrollment/internal/config"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

func TestGetPricing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/courses/c1/pricing":
			_, _ = w.Write([]byte(`{
				"course_id": "c1",
				"guru_id": "g1",
				"one_time_amount": 99900,
				"subscription_rates": {"monthly": 49900, "yearly": 499000},
				"discount_percent": 10,
				"tax_percent": 18,
				"is_open_for_enrollment": true
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPCatalog(config.CatalogConfig{BaseURL: srv.URL})

	pricing, err := c.GetPricing(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetPricing failed: %v", err)
	}
	if pricing.GuruID != "g1" || *pricing.OneTimeAmount != 99900 {
		t.Errorf("pricing = %+v", pricing)
	}
	if pricing.SubscriptionRates[model.BillingCycleMonthly] != 49900 {
		t.Errorf("monthly rate = %d", pricing.SubscriptionRates[model.BillingCycleMonthly])
	}

	if _, err := c.GetPricing(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown course err = %v, want ErrNotFound", err)
	}
}
