package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
)

const DefaultMirrorTimeout = 10 * time.Second

type MirrorOutcome string

const (
	MirrorMirrored MirrorOutcome = "mirrored"
	MirrorNotFound MirrorOutcome = "not_found"
	MirrorFailed   MirrorOutcome = "failed"
	MirrorSkipped  MirrorOutcome = "skipped"
)

type PrimaryResult struct {
	Matched     bool       `json:"matched"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type SecondaryResult struct {
	Outcome MirrorOutcome `json:"outcome"`
	Error   string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// StatusResult describes both phases of a status change. The call succeeded
// when the primary phase did; the secondary phase is informational.
type StatusResult struct {
	OrderID   string          `json:"order_id"`
	Status    Status          `json:"status"`
	ChangedAt time.Time       `json:"changed_at"`
	Primary   PrimaryResult   `json:"primary"`
	Secondary SecondaryResult `json:"secondary"`
}

// Propagator writes status changes to the relational store and then mirrors
// them to the document store on a best-effort basis.
type Propagator struct {
	orders        Repository
	docs          docstore.Store
	reporter      MirrorReporter
	collection    string
	mirrorTimeout time.Duration
	now           func() time.Time
}

type PropagatorOption func(*Propagator)

func WithMirrorTimeout(d time.Duration) PropagatorOption {
	return func(p *Propagator) {
		if d > 0 {
			p.mirrorTimeout = d
		}
	}
}

func WithReporter(r MirrorReporter) PropagatorOption {
	return func(p *Propagator) { p.reporter = r }
}

func WithClock(now func() time.Time) PropagatorOption {
	return func(p *Propagator) { p.now = now }
}

func WithMirrorCollection(name string) PropagatorOption {
	return func(p *Propagator) { p.collection = name }
}

// NewPropagator builds a propagator. docs may be nil, in which case every
// mirror is reported as skipped.
func NewPropagator(orders Repository, docs docstore.Store, opts ...PropagatorOption) *Propagator {
	p := &Propagator{
		orders:        orders,
		docs:          docs,
		reporter:      LogReporter{},
		collection:    DefaultCollection,
		mirrorTimeout: DefaultMirrorTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Propagator) SetStatus(ctx context.Context, orderID string, status Status) (*StatusResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q, allowed: %s", ErrValidation, status, joinStatuses())
	}

	at := p.now().UTC()
	result := &StatusResult{OrderID: orderID, Status: status, ChangedAt: at}

	matched, err := p.orders.UpdateStatus(ctx, orderID, status, at)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Stringer("new_status", status).Msg("propagator: relational status update failed")
		return nil, fmt.Errorf("propagator: failed to update order status: %w", err)
	}
	result.Primary.Matched = matched
	if status == StatusCompleted {
		result.Primary.CompletedAt = &at
	}
	if !matched {
		// заказ может жить только в документном хранилище
		log.Warn().Str("order_id", orderID).Stringer("new_status", status).Msg("propagator: no relational row matched, mirroring anyway")
	}

	result.Secondary = p.mirror(ctx, orderID, status, at)
	p.reporter.ReportMirror(ctx, *result)

	log.Info().
		Str("order_id", orderID).
		Stringer("new_status", status).
		Bool("relational_updated", matched).
		Str("mirror", string(result.Secondary.Outcome)).
		Msg("propagator: order status updated")
	return result, nil
}

func (p *Propagator) mirror(ctx context.Context, orderID string, status Status, at time.Time) SecondaryResult {
	if p.docs == nil {
		return SecondaryResult{Outcome: MirrorSkipped}
	}

	fields := map[string]docstore.Value{
		"status": docstore.String(string(status)),
	}
	if status == StatusCompleted {
		fields["completedAt"] = docstore.Timestamp(at)
	}

	mctx, cancel := context.WithTimeout(ctx, p.mirrorTimeout)
	defer cancel()

	err := p.docs.UpdateDocument(mctx, p.collection, orderID, fields)
	switch {
	case err == nil:
		return SecondaryResult{Outcome: MirrorMirrored}
	case errors.Is(err, docstore.ErrNotFound):
		return SecondaryResult{Outcome: MirrorNotFound}
	default:
		return SecondaryResult{Outcome: MirrorFailed, Error: err.Error(), Err: err}
	}
}

func joinStatuses() string {
	names := make([]string, 0, len(allStatuses))
	for _, s := range allStatuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
