package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable marks failures where the gateway could not be reached or timed out.
var ErrUnavailable = errors.New("gateway unavailable")

// Item is one purchased line forwarded to the gateway.
type Item struct {
	ID    string
	Name  string
	Price int64
}

// OrderRequest describes an order to open with the gateway.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Items    []Item
	Metadata map[string]string
}

// Order is the gateway-side record of an intended charge.
type Order struct {
	OrderID     string
	Amount      int64
	Currency    string
	RedirectURL string
}

// OrderCreator opens payment orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func unavailable(err error) error {
	return errors.Join(ErrUnavailable, err)
}
