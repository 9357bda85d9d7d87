package store

// This file contains a shared in-memory RemoteStore used across tests.
// It lives outside _test.go so the sync engine tests can use it too.

import (
	"context"
	"sync"
	"time"
)

// MockRemote implements RemoteStore for testing. Error injection is per
// operation and per id; Latency delays writes so per-item timeouts can be
// exercised against a context deadline.
type MockRemote struct {
	mu sync.Mutex

	Labels map[string]LabelRecord
	Orders map[string]OrderRecord

	GetLabelsErr error
	GetOrdersErr error
	PutLabelErr  map[string]error // id -> error returned instead of writing
	PutOrderErr  map[string]error
	Latency      time.Duration

	PutLabelCalls int
	PutOrderCalls int
}

// NewMockRemote creates an empty mock remote store.
func NewMockRemote() *MockRemote {
	return &MockRemote{
		Labels:      make(map[string]LabelRecord),
		Orders:      make(map[string]OrderRecord),
		PutLabelErr: make(map[string]error),
		PutOrderErr: make(map[string]error),
	}
}

// wait blocks for the configured latency or until the context expires.
func (m *MockRemote) wait(ctx context.Context, op string) error {
	if m.Latency == 0 {
		if err := ctx.Err(); err != nil {
			return &RemoteError{Op: op, Err: err}
		}
		return nil
	}

	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &RemoteError{Op: op, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func (m *MockRemote) GetLabels(ctx context.Context) ([]LabelRecord, error) {
	if err := m.wait(ctx, "GetLabels"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetLabelsErr != nil {
		return nil, m.GetLabelsErr
	}
	labels := make([]LabelRecord, 0, len(m.Labels))
	for _, rec := range m.Labels {
		labels = append(labels, rec)
	}
	return labels, nil
}

func (m *MockRemote) GetOrders(ctx context.Context) ([]OrderRecord, error) {
	if err := m.wait(ctx, "GetOrders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetOrdersErr != nil {
		return nil, m.GetOrdersErr
	}
	orders := make([]OrderRecord, 0, len(m.Orders))
	for _, rec := range m.Orders {
		orders = append(orders, rec)
	}
	return orders, nil
}

func (m *MockRemote) PutLabel(ctx context.Context, rec LabelRecord) error {
	if err := m.wait(ctx, "PutLabel"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutLabelCalls++
	if err, ok := m.PutLabelErr[rec.ID]; ok {
		return err
	}
	m.Labels[rec.ID] = rec
	return nil
}

func (m *MockRemote) PutOrder(ctx context.Context, rec OrderRecord) error {
	if err := m.wait(ctx, "PutOrder"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutOrderCalls++
	if err, ok := m.PutOrderErr[rec.ID]; ok {
		return err
	}
	m.Orders[rec.ID] = rec
	return nil
}

func (m *MockRemote) DeleteLabel(ctx context.Context, id string) error {
	if err := m.wait(ctx, "DeleteLabel"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Labels, id)
	return nil
}

func (m *MockRemote) DeleteOrder(ctx context.Context, id string) error {
	if err := m.wait(ctx, "DeleteOrder"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Orders, id)
	return nil
}
