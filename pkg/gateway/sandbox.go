package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sandbox issues orders locally for development and tests.
type Sandbox struct{}

// NewSandbox constructs a sandbox gateway.
func NewSandbox() *Sandbox {
	return &Sandbox{}
}

// CreateOrder returns an order with a random identifier.
func (s *Sandbox) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("sandbox: amount must be positive, got %d", req.Amount)
	}
	return &Order{
		OrderID:  "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}
