package order

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/user"
)

// Service is the admin-facing order API.
type Service interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, page, limit int) (*OrderPage, error)
	SetStatus(ctx context.Context, orderID string, status Status) (*StatusResult, error)
	SearchOrders(ctx context.Context, filter SearchFilter) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	*Resolver
	*Propagator

	orders Repository
	users  user.Repository
	now    func() time.Time
}

func NewService(resolver *Resolver, propagator *Propagator, orders Repository, users user.Repository) Service {
	return &service{
		Resolver:   resolver,
		Propagator: propagator,
		orders:     orders,
		users:      users,
		now:        time.Now,
	}
}

func (s *service) SearchOrders(ctx context.Context, filter SearchFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, filter.Status)
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, fmt.Errorf("%w: date_to is before date_from", ErrValidation)
	}

	orders, err := s.orders.Search(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to search orders")
		return nil, fmt.Errorf("service: failed to search orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q, allowed: %s", ErrValidation, status, joinStatuses())
	}

	orders, err := s.orders.ListByStatus(ctx, status)
	if err != nil {
		log.Error().Err(err).Stringer("status", status).Msg("service: failed to list orders by status")
		return nil, fmt.Errorf("service: failed to list orders by status: %w", err)
	}
	return orders, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.orders.Stats(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("service: failed to compute order stats")
		return nil, fmt.Errorf("service: failed to compute stats: %w", err)
	}

	users, err := s.users.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to count users")
		return nil, fmt.Errorf("service: failed to compute stats: %w", err)
	}
	stats.TotalUsers = users
	return stats, nil
}
