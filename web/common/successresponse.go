package common

type CreatedResponse struct {
	ID int64 `json:"id"`
}

func NewCreatedResponse(id int64) *CreatedResponse {
	return &CreatedResponse{ID: id}
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewMessageResponse(message string) *MessageResponse {
	return &MessageResponse{
		Success: true,
		Message: message,
	}
}
