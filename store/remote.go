package store

import "context"

// RemoteStore is the shared cloud document store. Any client may read or
// write any document; there is no single owner and no coordination between
// writers. Writes are upserts keyed by the record's own id.
type RemoteStore interface {
	GetLabels(ctx context.Context) ([]LabelRecord, error)
	GetOrders(ctx context.Context) ([]OrderRecord, error)
	PutLabel(ctx context.Context, rec LabelRecord) error
	PutOrder(ctx context.Context, rec OrderRecord) error
	DeleteLabel(ctx context.Context, id string) error
	DeleteOrder(ctx context.Context, id string) error
}
