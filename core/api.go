package core

import (
	"context"
	"io"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
)

// WorkLogAPI is the slice of the backend the sync layer talks to.
// *v1.WorkLogEndpoint implements it.
type WorkLogAPI interface {
	List(ctx context.Context, params v1.ListParams) (*common.ListResponse, error)
	ListByDate(ctx context.Context, isoDate string, params v1.ListParams) (*common.ListResponse, error)
	Get(ctx context.Context, id int64) (*model.WorkLog, error)
	Create(ctx context.Context, req model.CreateRequest) (*model.WorkLog, error)
	Update(ctx context.Context, id int64, req model.UpdateRequest) (*model.WorkLog, error)
	UpdateStatus(ctx context.Context, id int64, completed bool) (*common.StatusAPIResponse, error)
	Delete(ctx context.Context, id int64) error
	Upload(ctx context.Context, filename string, r io.Reader, carModel string) (*common.UploadResponse, error)
}

// EventReader yields push frames until an error; io.EOF means the server closed.
type EventReader interface {
	Next() (v1.Event, error)
	Close() error
}

// EventSource opens a push stream, resuming after lastEventID when it is set.
type EventSource func(ctx context.Context, lastEventID string) (EventReader, error)

// StreamSource adapts the client's event endpoint.
func StreamSource(ep *v1.EventEndpoint) EventSource {
	return func(ctx context.Context, lastEventID string) (EventReader, error) {
		return ep.Subscribe(ctx, lastEventID)
	}
}
