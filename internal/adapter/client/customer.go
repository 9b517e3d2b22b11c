package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// CustomerClient asks the customer directory for a customer's type.
type CustomerClient struct {
	http *HTTPClient
}

func NewCustomerClient(baseURL string, cfg config.Breaker, logger *slog.Logger) *CustomerClient {
	return &CustomerClient{http: NewHTTPClient("customer-service", baseURL, cfg, logger)}
}

type customerResponse struct {
	ID   string              `json:"id"`
	Type domain.CustomerType `json:"type"`
}

func (c *CustomerClient) CustomerType(ctx context.Context, customerID string) (domain.CustomerType, error) {
	var resp customerResponse
	if err := c.http.Do(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, &resp); err != nil {
		return "", err
	}
	switch resp.Type {
	case domain.CustomerPersonal, domain.CustomerBusiness:
		return resp.Type, nil
	default:
		return "", fmt.Errorf("%w: customer %s has unknown type %q", domain.ErrServiceUnavailable, customerID, resp.Type)
	}
}

// StaticCustomers answers from a fixed table. Unknown customers get Default.
type StaticCustomers struct {
	Types   map[string]domain.CustomerType
	Default domain.CustomerType
}

func (s StaticCustomers) CustomerType(_ context.Context, customerID string) (domain.CustomerType, error) {
	if t, ok := s.Types[customerID]; ok {
		return t, nil
	}
	if s.Default == "" {
		return "", fmt.Errorf("%w: customer %s", domain.ErrNotFound, customerID)
	}
	return s.Default, nil
}
