package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/model"
)

// LiveEvent is one decoded push frame. The concrete types are ConnectedEvent,
// CreatedEvent, UpdatedEvent, DeletedEvent, ErrorEvent and RejectedEvent.
type LiveEvent interface {
	liveEvent()
}

type ConnectedEvent struct {
	Message string
}

type CreatedEvent struct {
	Record model.WorkLog
}

type UpdatedEvent struct {
	Record model.WorkLog
}

type DeletedEvent struct {
	ID int64
}

// ErrorEvent is an error frame sent by the server; the stream stays open.
type ErrorEvent struct {
	Message string
}

// RejectedEvent is a frame that could not be decoded.
type RejectedEvent struct {
	Name   string
	Data   string
	Reason error
}

func (ConnectedEvent) liveEvent() {}
func (CreatedEvent) liveEvent()   {}
func (UpdatedEvent) liveEvent()   {}
func (DeletedEvent) liveEvent()   {}
func (ErrorEvent) liveEvent()     {}
func (RejectedEvent) liveEvent()  {}

// DecodeEvent turns a raw frame into its typed form. It never fails: anything
// malformed becomes a RejectedEvent.
func DecodeEvent(ev v1.Event) LiveEvent {
	reject := func(err error) LiveEvent {
		return RejectedEvent{Name: ev.Name, Data: ev.Data, Reason: err}
	}

	switch ev.Name {
	case v1.EventConnect:
		return ConnectedEvent{Message: ev.Data}

	case v1.EventCreated, v1.EventUpdated:
		record, err := decodeRecord(ev.Data)
		if err != nil {
			return reject(err)
		}
		if ev.Name == v1.EventCreated {
			return CreatedEvent{Record: record}
		}
		return UpdatedEvent{Record: record}

	case v1.EventDeleted:
		var payload struct {
			ID *int64 `json:"id"`
		}
		if err := decodeStrict(ev.Data, &payload); err != nil {
			return reject(err)
		}
		if payload.ID == nil {
			return reject(errors.New("missing id"))
		}
		return DeletedEvent{ID: *payload.ID}

	case v1.EventError:
		return ErrorEvent{Message: ev.Data}
	}
	return reject(fmt.Errorf("unknown event %q", ev.Name))
}

// decodeRecord accepts a record only when it is a valid work log: positive id,
// compact work time, car model, non-negative quantity and an ISO completedAt.
func decodeRecord(data string) (model.WorkLog, error) {
	var record model.WorkLog
	if err := decodeStrict(data, &record); err != nil {
		return model.WorkLog{}, err
	}
	if err := model.Validate(record); err != nil {
		return model.WorkLog{}, errors.New(model.DescribeValidation(err))
	}
	return record, nil
}

func decodeStrict(data string, v any) error {
	trimmed := bytes.TrimSpace([]byte(data))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("payload is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
