package v1

type CalmanClient struct {
	Transport *Transport
	WorkLogs  *WorkLogEndpoint
	Events    *EventEndpoint
}

// NewCalmanClient initializes the API client
func NewCalmanClient(baseURL string, clientID string, opts ...TransportOption) *CalmanClient {
	t := NewTransport(baseURL, clientID, opts...)
	return &CalmanClient{
		Transport: t,
		WorkLogs:  &WorkLogEndpoint{transport: t},
		Events:    &EventEndpoint{transport: t},
	}
}
