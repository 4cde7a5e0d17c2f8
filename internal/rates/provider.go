package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultProviderBaseURL = "https://v6.exchangerate-api.com"
	defaultProviderTimeout = 15 * time.Second
)

// ProviderConfig holds exchange rate provider configuration.
type ProviderConfig struct {
	BaseURL string        // override for tests
	Timeout time.Duration // request timeout
}

// Provider fetches USD-based conversion rates from exchangerate-api.com.
// The API key is passed per call; the provider itself holds no credential.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// NewProvider creates a new rates provider client.
func NewProvider(config ProviderConfig) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = defaultProviderBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultProviderTimeout
	}
	return &Provider{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// FetchLatest retrieves the latest USD-based rates. A non-success result
// surfaces the provider's error-type, which also serves as the credential
// connectivity test ("invalid-key" and friends come back here).
func (p *Provider) FetchLatest(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v6/%s/latest/USD", p.baseURL, apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rates provider: unexpected response (status %d)", resp.StatusCode)
	}

	if parsed.Result != "success" {
		errType := parsed.ErrorType
		if errType == "" {
			errType = fmt.Sprintf("http status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("rates provider: %s", errType)
	}

	return parsed.ConversionRates, nil
}
