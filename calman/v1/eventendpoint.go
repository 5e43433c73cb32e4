package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	EventConnect = "connect"
	EventCreated = "worklog-created"
	EventUpdated = "worklog-updated"
	EventDeleted = "worklog-deleted"
	EventError   = "error"
)

// Event is one dispatched server-sent event frame.
type Event struct {
	ID   string
	Name string
	Data string
}

// ConnectionStatus is the body of GET /api/sse/status.
type ConnectionStatus struct {
	ActiveConnections int `json:"activeConnections"`
}

type EventEndpoint struct {
	transport *Transport
}

// Subscribe opens the push stream. lastEventID is sent as Last-Event-ID when set so
// the server only replays newer events. The stream ends when ctx is cancelled or
// the returned stream is closed.
func (this *EventEndpoint) Subscribe(ctx context.Context, lastEventID string) (*EventStream, error) {
	headers := map[string]string{}
	if lastEventID != "" {
		headers["Last-Event-ID"] = lastEventID
	}
	body, err := this.transport.Stream(ctx, "/api/sse/subscribe", headers)
	if err != nil {
		return nil, err
	}
	return NewEventStream(body), nil
}

func (this *EventEndpoint) Status(ctx context.Context) (*ConnectionStatus, error) {
	resp, err := this.transport.Get(ctx, "/api/sse/status", nil)
	if err != nil {
		return nil, err
	}
	var result ConnectionStatus
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("decode stream status: %w", err)
	}
	return &result, nil
}

// EventStream reads text/event-stream frames.
type EventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	lastID string
}

func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, reader: bufio.NewReader(body)}
}

// Next blocks until a full frame has been read. Frames without data are skipped.
// io.EOF is returned when the server closes the stream.
func (s *EventStream) Next() (Event, error) {
	var (
		name string
		data []string
	)
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return Event{}, io.EOF
			}
			if err != io.EOF {
				return Event{}, err
			}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) == 0 {
				name = ""
				if err == io.EOF {
					return Event{}, io.EOF
				}
				continue
			}
			if name == "" {
				name = "message"
			}
			return Event{ID: s.lastID, Name: name, Data: strings.Join(data, "\n")}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		case "id":
			s.lastID = value
		}

		if err == io.EOF {
			return Event{}, io.EOF
		}
	}
}

func (s *EventStream) Close() error {
	return s.body.Close()
}
