package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// total_cost уходит в JSON числом, а не строкой
	decimal.MarshalJSONWithoutQuotes = true
}

type Status string

const (
	StatusPending   Status = "Pending"
	StatusPrinting  Status = "Printing"
	StatusReady     Status = "Ready"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var allStatuses = []Status{StatusPending, StatusPrinting, StatusReady, StatusCompleted, StatusCancelled}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Statuses returns the five accepted status values in display order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// canonicalStatus maps case variants of a known status onto the canonical value.
func canonicalStatus(raw string) Status {
	for _, known := range allStatuses {
		if strings.EqualFold(raw, string(known)) {
			return known
		}
	}
	return Status(raw)
}

// Source tells which store produced an order.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

func (s Source) String() string {
	return string(s)
}

type PrintOptions struct {
	PaperSize   string `json:"paper_size"`
	Color       string `json:"color"`
	Quantity    int    `json:"quantity"`
	Sides       string `json:"sides"`
	Orientation string `json:"orientation"`
	Binding     string `json:"binding"`
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
	FileType     string `json:"file_type"`
	FileURL      string `json:"file_url"`
}

type DeliveryAddress struct {
	RecipientName string  `json:"recipient_name"`
	Phone         string  `json:"phone"`
	AddressLine1  string  `json:"address_line1"`
	AddressLine2  *string `json:"address_line2"`
	City          string  `json:"city"`
	PostalCode    string  `json:"postal_code"`
	Notes         *string `json:"notes"`
}

type Order struct {
	ID              string           `json:"id"`
	OrderID         string           `json:"order_id"`
	UserID          string           `json:"user_id"`
	Status          Status           `json:"status"`
	TotalCost       decimal.Decimal  `json:"total_cost"`
	DeliveryOption  string           `json:"delivery_option"`
	QRCode          string           `json:"qr_code"`
	CreatedAt       *time.Time       `json:"created_at"`
	EstimatedReady  *time.Time       `json:"estimated_ready"`
	CompletedAt     *time.Time       `json:"completed_at"`
	PrintOptions    *PrintOptions    `json:"print_options"`
	Files           []File           `json:"files"`
	DeliveryAddress *DeliveryAddress `json:"delivery_address"`
	UserEmail       string           `json:"user_email"`
	UserName        string           `json:"user_name"`
	UserPhone       *string          `json:"user_phone"`
	Source          Source           `json:"source"`

	// created_at was missing or unparseable and filled from the clock
	createdAtDefaulted bool
}

// sortTime is the key used when ordering by creation time. Defaulted
// timestamps sort as the epoch.
func (o *Order) sortTime() time.Time {
	if o.CreatedAt == nil || o.createdAtDefaulted {
		return time.Unix(0, 0).UTC()
	}
	return *o.CreatedAt
}

// OrderPage is one page of the admin listing.
type OrderPage struct {
	Orders []Order
	Source Source
	Page   int
	Limit  int
	Total  int
}

// Pages is ceil(Total / Limit).
func (p *OrderPage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

type SearchFilter struct {
	OrderID  string
	Status   Status
	UserID   string
	DateFrom *time.Time
	DateTo   *time.Time
}

type Stats struct {
	TotalOrders       int64            `json:"total_orders"`
	TotalUsers        int64            `json:"total_users"`
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	RecentOrders      int64            `json:"recent_orders"`
	TodayOrders       int64            `json:"today_orders"`
	TodayRevenue      decimal.Decimal  `json:"today_revenue"`
	OrdersByStatus    map[Status]int64 `json:"orders_by_status"`
}
