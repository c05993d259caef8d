package model

import "time"

// PublishState is a step of the create -> poll -> publish state machine.
type PublishState string

const (
	StateInit             PublishState = "INIT"
	StateTokenReady       PublishState = "TOKEN_READY"
	StateCapabilityOK     PublishState = "CAPABILITY_OK"
	StateMediaReady       PublishState = "MEDIA_READY"
	StateContainerCreated PublishState = "CONTAINER_CREATED"
	StatePolling          PublishState = "POLLING"
	StatePublished        PublishState = "PUBLISHED"
	StateFailed           PublishState = "FAILED"
)

// PublishRequest is the single operation exposed to API routes.
type PublishRequest struct {
	Account  AccountRef `json:"account"`
	MediaURL string     `json:"media_url"`
	Caption  string     `json:"caption"`
	// Kind is optional. When set, the preflight content type must resolve to it.
	Kind MediaKind `json:"kind,omitempty"`
}

// ResumeRequest continues an attempt whose container was still processing.
type ResumeRequest struct {
	Account     AccountRef `json:"account"`
	ContainerID string     `json:"container_id"`
	Caption     string     `json:"caption"`
	AttemptID   string     `json:"attempt_id,omitempty"`
}

// PublishResult is returned to the caller on success and, partially filled, alongside errors.
type PublishResult struct {
	AttemptID   string          `json:"attempt_id"`
	OK          bool            `json:"ok"`
	PublishedID string          `json:"published_id,omitempty"`
	ContainerID string          `json:"container_id,omitempty"`
	State       PublishState    `json:"state"`
	LastStatus  ContainerStatus `json:"last_status,omitempty"`
	MediaURL    string          `json:"media_url,omitempty"`
	Transcoded  bool            `json:"transcoded"`
	Diagnostics *Diagnostics    `json:"diagnostics,omitempty"`
}

// PublishAttempt is the persisted ledger row of one orchestrator run.
type PublishAttempt struct {
	ID           int64        `json:"id"`
	AttemptID    string       `json:"attempt_id"`
	UserID       string       `json:"user_id"`
	Platform     string       `json:"platform"`
	MediaURL     string       `json:"media_url"`
	State        PublishState `json:"state"`
	ContainerID  *string      `json:"container_id,omitempty"`
	PublishedID  *string      `json:"published_id,omitempty"`
	ErrorKind    *string      `json:"error_kind,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PublishJob represents a queued backend publish action
type PublishJob struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Platform    string    `json:"platform"`
	MediaURL    string    `json:"media_url"`
	Caption     string    `json:"caption"`
	MediaKind   string    `json:"media_kind,omitempty"`
	ContainerID *string   `json:"container_id,omitempty"` // set when a previous run timed out while polling
	Status      string    `json:"status"`                 // pending | running | success | failed
	Attempts    int       `json:"attempts"`
	LastError   *string   `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PublishEvent is emitted to message brokers when an attempt reaches a terminal state.
type PublishEvent struct {
	Type        string       `json:"type"`
	AttemptID   string       `json:"attempt_id"`
	UserID      string       `json:"user_id"`
	Platform    string       `json:"platform"`
	State       PublishState `json:"state"`
	ContainerID string       `json:"container_id,omitempty"`
	PublishedID string       `json:"published_id,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	Error       string       `json:"error,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
