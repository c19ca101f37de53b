package indicatorclient

import (
	"context"
	"net/http"
)

// GetAvailableIndicators lists the indicators the service can compute.
func (c *Client) GetAvailableIndicators(ctx context.Context) (Payload, error) {
	return c.dispatch(ctx, http.MethodGet, "/indicators/available", nil, nil)
}

// CalculateIndicators runs a synchronous calculation for one symbol.
func (c *Client) CalculateIndicators(ctx context.Context, req CalculateRequest) (Payload, error) {
	body, err := req.body()
	if err != nil {
		return Payload{}, err
	}
	return c.dispatch(ctx, http.MethodPost, "/indicators/calculate", body, nil)
}

// BatchCalculate computes the same indicators for several symbols in one call.
func (c *Client) BatchCalculate(ctx context.Context, req BatchRequest) (Payload, error) {
	query, err := req.query()
	if err != nil {
		return Payload{}, err
	}
	return c.dispatch(ctx, http.MethodGet, "/indicators/calculate/batch", nil, query)
}

// ValidateCalculation asks the service whether a calculation is feasible.
func (c *Client) ValidateCalculation(ctx context.Context, req ValidateRequest) (Payload, error) {
	body, err := req.body()
	if err != nil {
		return Payload{}, err
	}
	return c.dispatch(ctx, http.MethodPost, "/indicators/validate", body, nil)
}

// HealthCheck reports whether the service answers with status "healthy".
// Any failure, including transport errors and malformed bodies, yields false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	resp, err := c.dispatch(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return false
	}
	return resp.Get("status").String() == "healthy"
}
