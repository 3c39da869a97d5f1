// Package orders defines the narrow contract for the commerce order-lookup
// collaborator consumed by the verification gate. Concrete implementations
// (Shopify) live in the integration layer and are out of scope here.
package orders

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the order or customer does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNotConfigured indicates no commerce integration is available.
	ErrNotConfigured = errors.New("order lookup not configured")
)

// Customer is the denormalized customer view exposed by the lookup service.
type Customer struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Tags        []string `json:"tags"`
	Note        *string  `json:"note"`
	OrdersCount int      `json:"orders_count"`
	TotalSpent  string   `json:"total_spent"`
}

// LineItem is a single purchased item on an order.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// TrackingInfo carries shipment tracking details from a fulfillment.
type TrackingInfo struct {
	Number  string `json:"number"`
	URL     string `json:"url"`
	Company string `json:"company"`
}

// Fulfillment is one shipment attached to an order.
type Fulfillment struct {
	Status       string         `json:"status"`
	TrackingInfo []TrackingInfo `json:"tracking_info"`
}

// Order is the order view exposed by the lookup service.
type Order struct {
	ID           string        `json:"id"`
	Number       string        `json:"number"`
	Status       string        `json:"status"`
	Email        string        `json:"email"`
	Tags         []string      `json:"tags"`
	Note         *string       `json:"note"`
	Customer     *Customer     `json:"customer"`
	LineItems    []LineItem    `json:"line_items"`
	Fulfillments []Fulfillment `json:"fulfillments"`
}

// Lookup is the order-lookup collaborator contract.
type Lookup interface {
	// Configured reports whether the commerce integration is available.
	Configured() bool
	// OrderByNumber resolves an order by its customer-facing number.
	// Returns ErrNotFound when no order matches.
	OrderByNumber(ctx context.Context, number string) (*Order, error)
	// CustomerByEmail resolves a customer by email address.
	// Returns ErrNotFound when no customer matches.
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
}

type unconfigured struct{}

// Unconfigured returns a Lookup for environments without a commerce
// integration. Every call reports ErrNotConfigured; the verification gate
// applies its configured degrade policy.
func Unconfigured() Lookup {
	return unconfigured{}
}

func (unconfigured) Configured() bool {
	return false
}

func (unconfigured) OrderByNumber(context.Context, string) (*Order, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) CustomerByEmail(context.Context, string) (*Customer, error) {
	return nil, ErrNotConfigured
}
