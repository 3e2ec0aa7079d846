package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolumiku/dealership-ai-platform/internal/identity"
	"github.com/autolumiku/dealership-ai-platform/internal/vehicle"
)

// Type distinguishes staff conversations from customer conversations.
type Type string

const (
	TypeStaff    Type = "staff"
	TypeCustomer Type = "customer"
)

// Status is the lifecycle status of a conversation. Escalated suppresses
// automated replies until explicitly cleared; conversations are closed, never
// hard-deleted.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
	StatusClosed    Status = "closed"
)

// UploadStep is the state of the vehicle upload workflow.
type UploadStep string

const (
	StepNone               UploadStep = "none"
	StepAwaitingPhoto      UploadStep = "awaiting_photo"
	StepPhotoAwaitingData  UploadStep = "has_photo_awaiting_data"
	StepAwaitingCompletion UploadStep = "awaiting_completion"
	StepComplete           UploadStep = "complete"
)

// WorkflowKind tags which workflow owns the conversation context.
type WorkflowKind string

const (
	WorkflowNone   WorkflowKind = ""
	WorkflowUpload WorkflowKind = "upload"
)

// MediaRef points at one captured media item.
type MediaRef struct {
	URL        string    `json:"url"`
	MediaType  string    `json:"media_type"`
	ReceivedAt time.Time `json:"received_at"`
}

// UploadDraft is the transient vehicle draft held while the upload workflow
// runs. It is discarded on completion or abandonment and only promoted into a
// catalog record at the end.
type UploadDraft struct {
	Step      UploadStep      `json:"step"`
	Photos    []MediaRef      `json:"photos,omitempty"`
	Extracted *vehicle.Fields `json:"extracted,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

// VerifiedBinding records an explicit staff verification of a device
// identity. It is a lookup back-reference only: losing it reverts the device
// to unverified, it never grants authority by itself.
type VerifiedBinding struct {
	Phone      string    `json:"phone"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Context is the per-conversation state bag. Workflow-specific fields live
// behind the ActiveWorkflow tag so that only fields valid for the current
// workflow are reachable.
type Context struct {
	ActiveWorkflow  WorkflowKind     `json:"active_workflow,omitempty"`
	Upload          *UploadDraft     `json:"upload,omitempty"`
	Verified        *VerifiedBinding `json:"verified,omitempty"`
	LastVehicleID   string           `json:"last_vehicle_id,omitempty"`
	LastQuotedPrice int64            `json:"last_quoted_price,omitempty"`
	ErrorStreak     int              `json:"error_streak,omitempty"`
}

// UploadDraft returns the active upload draft, or nil when no upload
// workflow is running.
func (c *Context) UploadDraft() *UploadDraft {
	if c == nil || c.ActiveWorkflow != WorkflowUpload {
		return nil
	}
	return c.Upload
}

// BeginUpload activates the upload workflow with a fresh draft.
func (c *Context) BeginUpload(now time.Time) *UploadDraft {
	draft := &UploadDraft{Step: StepAwaitingPhoto, StartedAt: now}
	c.ActiveWorkflow = WorkflowUpload
	c.Upload = draft
	return draft
}

// EndUpload discards the upload draft and deactivates the workflow.
func (c *Context) EndUpload() {
	c.ActiveWorkflow = WorkflowNone
	c.Upload = nil
}

// Conversation is the unit of stateful dialogue between one tenant/account
// and one external identity. Identity is (TenantID, AccountID, CustomerKey);
// exactly one live conversation exists per tuple.
type Conversation struct {
	ID            uuid.UUID
	TenantID      string
	AccountID     string
	CustomerKey   string
	SenderKind    identity.SenderKind
	Type          Type
	Status        Status
	Context       Context
	Version       int64
	LastMessageAt time.Time
	EscalatedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UploadStep reports the workflow step, StepNone when no upload is active.
func (c *Conversation) UploadStep() UploadStep {
	draft := c.Context.UploadDraft()
	if draft == nil {
		return StepNone
	}
	return draft.Step
}

// IsEscalated reports whether automated replies are suppressed.
func (c *Conversation) IsEscalated() bool {
	return c.Status == StatusEscalated
}

// Direction of a message relative to the engine.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Dispatch status of an outbound message. Inbound messages stay empty.
const (
	DispatchPending string = "pending"
	DispatchSent    string = "sent"
	DispatchFailed  string = "failed"
)

// Message belongs to exactly one conversation. Immutable once written except
// for DispatchStatus.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Direction      Direction
	Content        string
	Intent         string
	MediaURL       string
	MediaType      string
	DispatchStatus string
	CreatedAt      time.Time
}
