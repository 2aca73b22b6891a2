package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pravartak01/shlokayug-enrollment/internal/config"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
)

// HTTPCatalog implements CourseCatalog against the catalog service's
// pricing endpoint.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalog creates a catalog client from config.
func NewHTTPCatalog(cfg config.CatalogConfig) *HTTPCatalog {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCatalog{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// pricingResponse mirrors the catalog service's pricing payload.
type pricingResponse struct {
	CourseID            string           `json:"course_id"`
	GuruID              string           `json:"guru_id"`
	OneTimeAmount       *int64           `json:"one_time_amount"`
	SubscriptionRates   map[string]int64 `json:"subscription_rates"`
	DiscountPercent     int              `json:"discount_percent"`
	TaxPercent          int              `json:"tax_percent"`
	IsOpenForEnrollment bool             `json:"is_open_for_enrollment"`
}

// GetPricing fetches the current pricing for one course. A 404 maps to
// ErrNotFound so callers can treat an unknown course like a missing row.
func (c *HTTPCatalog) GetPricing(ctx context.Context, courseID string) (*model.CoursePricing, error) {
	u := fmt.Sprintf("%s/courses/%s/pricing", c.baseURL, url.PathEscape(courseID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pricing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var pr pricingResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w, body: %s", err, string(body))
	}

	pricing := &model.CoursePricing{
		CourseID:            pr.CourseID,
		GuruID:              pr.GuruID,
		OneTimeAmount:       pr.OneTimeAmount,
		DiscountPercent:     pr.DiscountPercent,
		TaxPercent:          pr.TaxPercent,
		IsOpenForEnrollment: pr.IsOpenForEnrollment,
	}
	if len(pr.SubscriptionRates) > 0 {
		pricing.SubscriptionRates = make(map[model.BillingCycle]int64, len(pr.SubscriptionRates))
		for cycle, rate := range pr.SubscriptionRates {
			pricing.SubscriptionRates[model.BillingCycle(cycle)] = rate
		}
	}
	return pricing, nil
}
