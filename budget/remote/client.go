package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcelsud/jobgate/budget"
)

// Client reads tenant budgets from the authoritative billing service over HTTP.
// GET {baseURL}/v1/budgets/{tenant_id} answers {"spend":..,"limit":..,"alert_threshold":..,"grace_threshold":..}
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type budgetResponse struct {
	Spend          float64 `json:"spend"`
	Limit          float64 `json:"limit"`
	AlertThreshold float64 `json:"alert_threshold"`
	GraceThreshold float64 `json:"grace_threshold"`
}

// NewClient creates a budget service client. timeout bounds each request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchBudget implements budget.Source
func (c *Client) FetchBudget(ctx context.Context, tenantID string) (budget.State, error) {
	if c.baseURL == "" {
		return budget.State{}, fmt.Errorf("budget service base URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/budgets/%s", c.baseURL, url.PathEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return budget.State{}, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return budget.State{}, fmt.Errorf("fetching budget: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// unconfigured tenant: nothing spent, platform default limit
		return budget.State{TenantID: tenantID}, nil
	}
	if resp.StatusCode >= 400 {
		return budget.State{}, fmt.Errorf("budget service returned status %d", resp.StatusCode)
	}

	var body budgetResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return budget.State{}, fmt.Errorf("decoding budget: %w", err)
	}
	if body.Spend < 0 {
		return budget.State{}, fmt.Errorf("budget service returned negative spend %f", body.Spend)
	}

	return budget.State{
		TenantID:       tenantID,
		Spend:          body.Spend,
		Limit:          body.Limit,
		AlertThreshold: body.AlertThreshold,
		GraceThreshold: body.GraceThreshold,
	}, nil
}
