package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// snapCreator is the subset of snap.Client used here.
type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// Midtrans opens orders as Snap transactions.
type Midtrans struct {
	client snapCreator
}

// NewMidtrans builds a Snap-backed gateway for the given server key.
func NewMidtrans(serverKey string, production bool) *Midtrans {
	var client snap.Client
	if production {
		client.New(serverKey, midtrans.Production)
	} else {
		client.New(serverKey, midtrans.Sandbox)
	}
	return &Midtrans{client: &client}
}

// CreateOrder creates a Snap transaction whose order id is generated locally.
// The Snap SDK call is not context-aware, so ctx only bounds how long we wait for it.
func (m *Midtrans) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	orderID := "order-" + uuid.NewString()
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: req.Amount,
		},
		CustomField1: truncate(req.Receipt, 40),
		CustomField2: truncate(req.Metadata["student_id"], 40),
		CustomField3: truncate(req.Metadata["course_ids"], 255),
	}
	if len(req.Items) > 0 {
		items := make([]midtrans.ItemDetails, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, midtrans.ItemDetails{
				ID:       item.ID,
				Name:     truncate(item.Name, 50),
				Price:    item.Price,
				Qty:      1,
				Category: "COURSE",
			})
		}
		snapReq.Items = &items
	}

	type result struct {
		resp *snap.Response
		err  *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := m.client.CreateTransaction(snapReq)
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	case res := <-done:
		if res.err != nil {
			if res.err.StatusCode == 0 || res.err.StatusCode >= http.StatusInternalServerError {
				return nil, unavailable(fmt.Errorf("midtrans: %s", res.err.Message))
			}
			return nil, fmt.Errorf("midtrans: status %d: %s", res.err.StatusCode, res.err.Message)
		}
		order := &Order{OrderID: orderID, Amount: req.Amount, Currency: req.Currency}
		if res.resp != nil {
			order.RedirectURL = res.resp.RedirectURL
		}
		return order, nil
	}
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
