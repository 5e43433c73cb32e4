package core

import "github.com/google/uuid"

// Session identifies one running client. ClientID is sent as X-Client-ID on
// every mutating request and recorded as completedBy.
type Session struct {
	ClientID string
}

func NewSession() *Session {
	return &Session{ClientID: uuid.NewString()}
}
