package registrar

import (
	"context"
	"errors"
)

var ErrMissingCredentials = errors.New("registrar: missing credentials")

// PriceSource supplies the raw, registrar-keyed price tables.
type PriceSource interface {
	CustomerPrices(ctx context.Context) (PriceTable, error)
	ResellerPrices(ctx context.Context) (PriceTable, error)
	Promotions(ctx context.Context) (PromoTable, error)
}

// AvailabilityChecker queries the registrar for every label x tld combination.
// The returned map is keyed by the full domain name as the registrar spells it.
type AvailabilityChecker interface {
	Availability(ctx context.Context, labels, tlds []string) (AvailabilityMap, error)
}

// Orders issues billable actions. The acknowledgment only means the request
// was accepted; it says nothing about whether the charge went through.
type Orders interface {
	Register(ctx context.Context, req RegisterRequest) (Ack, error)
	Renew(ctx context.Context, req RenewRequest) (Ack, error)
	Transfer(ctx context.Context, req TransferRequest) (Ack, error)
}

type Client interface {
	Name() string
	PriceSource
	AvailabilityChecker
	Orders
}

type Contacts struct {
	Registrant int64
	Admin      int64
	Tech       int64
	Billing    int64
}

type RegisterRequest struct {
	Domain        string
	Years         int
	CustomerID    int64
	Contacts      Contacts
	NameServers   []string
	InvoiceOption string // NoInvoice|PayInvoice|KeepInvoice
	Privacy       bool
}

type RenewRequest struct {
	OrderID       int64
	Years         int
	ExpiresAt     int64 // current expiry, epoch seconds
	InvoiceOption string
}

type TransferRequest struct {
	Domain        string
	AuthCode      string
	CustomerID    int64
	Contacts      Contacts
	NameServers   []string
	InvoiceOption string
}

type Ack struct {
	Status       string `json:"status,omitempty"`
	ActionStatus string `json:"actionstatus,omitempty"`
	ActionType   string `json:"actiontypedesc,omitempty"`
	EntityID     string `json:"entityid,omitempty"`
	Description  string `json:"description,omitempty"`
}
