package api

import (
	"time"

	"github.com/codeready-toolchain/labforge/pkg/lab"
)

// CreateLabResponse is returned by POST /api/labs/create.
type CreateLabResponse struct {
	LabID  string    `json:"lab_id"`
	Status lab.Status `json:"status"`
}

// MessageResponse is returned by POST /api/labs/:id/message.
type MessageResponse struct {
	Status             string     `json:"status"`
	ConversationStatus lab.Status `json:"conversation_status"`
}

// ConversationView is the conversation sub-object of a lab snapshot (§6.1).
// Snapshot keeps Conversation/AwaitingUserInput out of its own JSON
// encoding (they are internal-only by default); this type assembles the
// public shape from the fields directly.
type ConversationView struct {
	Messages          []lab.Message `json:"messages"`
	AwaitingUserInput bool          `json:"awaiting_user_input"`
}

// LabSnapshotResponse is the full lab payload returned by both
// GET /api/labs/:id/status and GET /api/labs/:id.
type LabSnapshotResponse struct {
	LabID        string            `json:"lab_id"`
	Status       lab.Status        `json:"status"`
	CurrentAgent *lab.Stage        `json:"current_agent"`
	Conversation ConversationView  `json:"conversation"`
	Progress     lab.Progress      `json:"progress"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Prompt       string            `json:"prompt"`
	Error        string            `json:"error,omitempty"`
}

func newLabSnapshotResponse(snap lab.Snapshot) LabSnapshotResponse {
	var currentAgent *lab.Stage
	if snap.CurrentStage != "" {
		stage := snap.CurrentStage
		currentAgent = &stage
	}

	return LabSnapshotResponse{
		LabID:        snap.ID,
		Status:       snap.Status,
		CurrentAgent: currentAgent,
		Conversation: ConversationView{
			Messages:          snap.Conversation,
			AwaitingUserInput: snap.AwaitingUserInput,
		},
		Progress:  snap.Progress,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
		Prompt:    snap.Prompt,
		Error:     snap.Error,
	}
}

// LabListItem is one entry in the GET /api/labs response.
type LabListItem struct {
	LabID     string     `json:"lab_id"`
	Title     string     `json:"title"`
	Status    lab.Status `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

func newLabListItem(s lab.Summary) LabListItem {
	return LabListItem{LabID: s.ID, Title: s.Title, Status: s.Status, CreatedAt: s.CreatedAt}
}

// ErrorResponse is the wire shape for every error (§6.1: "{error, detail?}").
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
