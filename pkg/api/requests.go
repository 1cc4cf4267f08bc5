package api

// CreateLabRequest is the HTTP request body for POST /api/labs/create.
type CreateLabRequest struct {
	Prompt    string `json:"prompt" validate:"required,min=10"`
	DryRun    bool   `json:"dry_run"`
	EnableRCA bool   `json:"enable_rca"`
}

// SendMessageRequest is the HTTP request body for POST /api/labs/:id/message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}
