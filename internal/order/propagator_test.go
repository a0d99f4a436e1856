package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
	"github.com/vasiliy-maslov/print-admin/internal/order"
)

func newPropagator(repo *MockRepository, store docstore.Store, reporter order.MirrorReporter) *order.Propagator {
	return order.NewPropagator(repo, store,
		order.WithClock(fixedClock),
		order.WithReporter(reporter),
		order.WithMirrorTimeout(time.Second),
	)
}

func TestPropagator_SetStatus_Validation(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		status  order.Status
	}{
		{name: "empty_id", orderID: "", status: order.StatusReady},
		{name: "unknown_status", orderID: "ord-1", status: "Shipped"},
		{name: "lowercase_status", orderID: "ord-1", status: "ready"},
		{name: "empty_status", orderID: "ord-1", status: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			store := new(MockStore)

			_, err := newPropagator(repo, store, &recordingReporter{}).SetStatus(context.Background(), tt.orderID, tt.status)
			assert.ErrorIs(t, err, order.ErrValidation)
			repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "UpdateDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPropagator_SetStatus_CompletedSetsCompletedAt(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	reporter := &recordingReporter{}

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusCompleted, fixedNow).Return(true, nil)
	store.On("UpdateDocument", mock.Anything, "orders", "ord-1", map[string]docstore.Value{
		"status":      docstore.String("Completed"),
		"completedAt": docstore.Timestamp(fixedNow),
	}).Return(nil)

	res, err := newPropagator(repo, store, reporter).SetStatus(context.Background(), "ord-1", order.StatusCompleted)
	require.NoError(t, err)

	assert.True(t, res.Primary.Matched)
	require.NotNil(t, res.Primary.CompletedAt)
	assert.Equal(t, fixedNow, *res.Primary.CompletedAt)
	assert.Equal(t, order.MirrorMirrored, res.Secondary.Outcome)

	require.Len(t, reporter.results, 1)
	assert.Equal(t, "ord-1", reporter.results[0].OrderID)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestPropagator_SetStatus_OtherStatusLeavesCompletedAt(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusPrinting, fixedNow).Return(true, nil)
	store.On("UpdateDocument", mock.Anything, "orders", "ord-1", map[string]docstore.Value{
		"status": docstore.String("Printing"),
	}).Return(nil)

	res, err := newPropagator(repo, store, &recordingReporter{}).SetStatus(context.Background(), "ord-1", order.StatusPrinting)
	require.NoError(t, err)
	assert.Nil(t, res.Primary.CompletedAt)
	store.AssertExpectations(t)
}

func TestPropagator_SetStatus_MirrorFailureStillSucceeds(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	reporter := &recordingReporter{}

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusReady, fixedNow).Return(true, nil)
	store.On("UpdateDocument", mock.Anything, "orders", "ord-1", mock.Anything).
		Return(errors.Join(docstore.ErrUnavailable, errors.New("dial tcp: timeout")))

	res, err := newPropagator(repo, store, reporter).SetStatus(context.Background(), "ord-1", order.StatusReady)
	require.NoError(t, err)

	assert.True(t, res.Primary.Matched)
	assert.Equal(t, order.MirrorFailed, res.Secondary.Outcome)
	assert.ErrorIs(t, res.Secondary.Err, docstore.ErrUnavailable)
	assert.NotEmpty(t, res.Secondary.Error)

	require.Len(t, reporter.results, 1)
	assert.Equal(t, order.MirrorFailed, reporter.results[0].Secondary.Outcome)
}

func TestPropagator_SetStatus_MirrorNotFound(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusCancelled, fixedNow).Return(true, nil)
	store.On("UpdateDocument", mock.Anything, "orders", "ord-1", mock.Anything).Return(docstore.ErrNotFound)

	res, err := newPropagator(repo, store, &recordingReporter{}).SetStatus(context.Background(), "ord-1", order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.MirrorNotFound, res.Secondary.Outcome)
	assert.Nil(t, res.Secondary.Err)
}

func TestPropagator_SetStatus_NoRelationalRowStillMirrors(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)

	repo.On("UpdateStatus", mock.Anything, "doc-only", order.StatusReady, fixedNow).Return(false, nil)
	store.On("UpdateDocument", mock.Anything, "orders", "doc-only", mock.Anything).Return(nil)

	res, err := newPropagator(repo, store, &recordingReporter{}).SetStatus(context.Background(), "doc-only", order.StatusReady)
	require.NoError(t, err)
	assert.False(t, res.Primary.Matched)
	assert.Equal(t, order.MirrorMirrored, res.Secondary.Outcome)
}

func TestPropagator_SetStatus_RelationalErrorSkipsMirror(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	reporter := &recordingReporter{}
	dbErr := errors.New("deadlock detected")

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusReady, fixedNow).Return(false, dbErr)

	res, err := newPropagator(repo, store, reporter).SetStatus(context.Background(), "ord-1", order.StatusReady)
	assert.ErrorIs(t, err, dbErr)
	assert.Nil(t, res)
	assert.Empty(t, reporter.results)
	store.AssertNotCalled(t, "UpdateDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPropagator_SetStatus_NoDocumentStore(t *testing.T) {
	repo := new(MockRepository)
	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusReady, fixedNow).Return(true, nil)

	res, err := newPropagator(repo, nil, &recordingReporter{}).SetStatus(context.Background(), "ord-1", order.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, order.MirrorSkipped, res.Secondary.Outcome)
}

func TestPropagator_SetStatus_MirrorHasDeadline(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)

	repo.On("UpdateStatus", mock.Anything, "ord-1", order.StatusReady, fixedNow).Return(true, nil)
	store.On("UpdateDocument", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Second
	}), "orders", "ord-1", mock.Anything).Return(nil)

	_, err := newPropagator(repo, store, &recordingReporter{}).SetStatus(context.Background(), "ord-1", order.StatusReady)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestMultiReporter_FansOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	multi := order.MultiReporter{a, nil, b}

	multi.ReportMirror(context.Background(), order.StatusResult{OrderID: "x"})
	assert.Len(t, a.results, 1)
	assert.Len(t, b.results, 1)
}
