package order_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
	"github.com/vasiliy-maslov/print-admin/internal/order"
	"github.com/vasiliy-maslov/print-admin/internal/user"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CountOrders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, status, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Search(ctx context.Context, filter order.SearchFilter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) Stats(ctx context.Context, now time.Time) (*order.Stats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Stats), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListCollection(ctx context.Context, collection string) ([]docstore.Document, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]docstore.Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, collection, id string) (*docstore.Document, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docstore.Document), args.Error(1)
}

func (m *MockStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]docstore.Value) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetContact(ctx context.Context, id string) (*user.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Contact), args.Error(1)
}

func (m *MockUsers) GetContacts(ctx context.Context, ids []string) (map[string]user.Contact, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]user.Contact), args.Error(1)
}

func (m *MockUsers) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// recordingReporter keeps every reported result.
type recordingReporter struct {
	results []order.StatusResult
}

func (r *recordingReporter) ReportMirror(_ context.Context, result order.StatusResult) {
	r.results = append(r.results, result)
}
