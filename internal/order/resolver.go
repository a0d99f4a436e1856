package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
	"github.com/vasiliy-maslov/print-admin/internal/user"
)

const (
	DefaultCollection = "orders"

	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 200
)

// SourcePolicy picks the authoritative store for a listing given the number
// of orders in the relational store.
type SourcePolicy func(primaryCount int) Source

// PrimaryWhenNonEmpty serves listings from the relational store as soon as it
// holds a single order.
func PrimaryWhenNonEmpty(primaryCount int) Source {
	if primaryCount > 0 {
		return SourcePrimary
	}
	return SourceSecondary
}

// Resolver answers order reads from whichever store is authoritative.
type Resolver struct {
	orders     Repository
	docs       docstore.Store
	users      user.Repository
	normalizer *Normalizer
	policy     SourcePolicy
	collection string
}

type ResolverOption func(*Resolver)

func WithSourcePolicy(p SourcePolicy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

func WithNormalizer(n *Normalizer) ResolverOption {
	return func(r *Resolver) { r.normalizer = n }
}

func WithCollection(name string) ResolverOption {
	return func(r *Resolver) { r.collection = name }
}

// NewResolver builds a resolver. docs may be nil when the document store is
// disabled; reads then never leave the relational store.
func NewResolver(orders Repository, docs docstore.Store, users user.Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		orders:     orders,
		docs:       docs,
		users:      users,
		normalizer: NewNormalizer(nil),
		policy:     PrimaryWhenNonEmpty,
		collection: DefaultCollection,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}

	o, err := r.orders.GetByOrderID(ctx, orderID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		log.Error().Err(err).Str("order_id", orderID).Msg("resolver: failed to read order from relational store")
		return nil, fmt.Errorf("resolver: failed to get order: %w", err)
	}

	if r.docs == nil {
		return nil, ErrOrderNotFound
	}

	doc, err := r.docs.GetDocument(ctx, r.collection, orderID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			log.Warn().Err(err).Str("order_id", orderID).Msg("resolver: document store lookup failed, treating as missing")
		}
		return nil, ErrOrderNotFound
	}

	normalized := r.normalizer.Normalize(*doc)
	if err := r.joinContact(ctx, &normalized); err != nil {
		return nil, err
	}

	log.Debug().Str("order_id", orderID).Msg("resolver: order served from document store")
	return &normalized, nil
}

func (r *Resolver) ListOrders(ctx context.Context, page, limit int) (*OrderPage, error) {
	page, limit = clampPage(page, limit)

	count, err := r.orders.CountOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("resolver: failed to count relational orders")
		return nil, fmt.Errorf("resolver: failed to count orders: %w", err)
	}

	source := r.policy(count)
	if source == SourcePrimary {
		orders, err := r.orders.List(ctx, limit, (page-1)*limit)
		if err != nil {
			log.Error().Err(err).Int("page", page).Int("limit", limit).Msg("resolver: failed to list relational orders")
			return nil, fmt.Errorf("resolver: failed to list orders: %w", err)
		}
		return &OrderPage{Orders: orders, Source: SourcePrimary, Page: page, Limit: limit, Total: count}, nil
	}

	all, err := r.secondaryOrders(ctx)
	if err != nil {
		return nil, err
	}

	// документное хранилище отдаётся целиком, page/limit только для конверта
	return &OrderPage{Orders: all, Source: SourceSecondary, Page: page, Limit: limit, Total: len(all)}, nil
}

// secondaryOrders reads, normalizes, joins and sorts the whole collection.
// Store failures are logged and yield an empty list.
func (r *Resolver) secondaryOrders(ctx context.Context) ([]Order, error) {
	if r.docs == nil {
		return []Order{}, nil
	}

	docs, err := r.docs.ListCollection(ctx, r.collection)
	if err != nil {
		log.Warn().Err(err).Str("collection", r.collection).Msg("resolver: document store listing failed, returning empty list")
		return []Order{}, nil
	}

	orders := make([]Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, r.normalizer.Normalize(doc))
	}

	if err := r.joinContacts(ctx, orders); err != nil {
		return nil, err
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].sortTime().After(orders[j].sortTime())
	})
	return orders, nil
}

func (r *Resolver) joinContact(ctx context.Context, o *Order) error {
	key := contactKey(o)
	c, err := r.users.GetContact(ctx, key)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			log.Error().Err(err).Str("user_id", key).Msg("resolver: failed to read user contact")
			return fmt.Errorf("resolver: failed to join user contact: %w", err)
		}
		p := user.Placeholder(key)
		c = &p
	}
	applyContact(o, *c)
	return nil
}

func (r *Resolver) joinContacts(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(orders))
	keys := make([]string, 0, len(orders))
	for i := range orders {
		k := contactKey(&orders[i])
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	contacts, err := r.users.GetContacts(ctx, keys)
	if err != nil {
		log.Error().Err(err).Int("users", len(keys)).Msg("resolver: failed to read user contacts")
		return fmt.Errorf("resolver: failed to join user contacts: %w", err)
	}

	for i := range orders {
		k := contactKey(&orders[i])
		c, ok := contacts[k]
		if !ok {
			c = user.Placeholder(k)
		}
		applyContact(&orders[i], c)
	}
	return nil
}

func contactKey(o *Order) string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.OrderID
}

func applyContact(o *Order, c user.Contact) {
	o.UserEmail = c.Email
	o.UserName = c.Name
	o.UserPhone = c.Phone
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
