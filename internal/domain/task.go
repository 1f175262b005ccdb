package domain

import "time"

// ExternalTask tracks one asynchronous job at the remote 3D provider.
// Multiple notifications (polls, webhook deliveries, redeliveries) are
// reconciled against a single row; the reconciler is the only writer
// once the row exists.
type ExternalTask struct {
	TaskID      string
	AssetID     string
	Status      string
	Progress    int
	ResultRef   string
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
