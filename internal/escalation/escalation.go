// Package escalation implements the human-escalation path: outbound notices
// to a supervisor, parsing of the supervisor's tagged reply, and the
// mutually exclusive dispatch of the parsed action. A notice is mutated
// exactly once when its reply is processed and is immutable afterward.
package escalation

import (
	"time"

	"github.com/google/uuid"
)

// ResponseType classifies a supervisor's reply to an escalation notice.
type ResponseType string

const (
	// TypeRelay is the default: an untagged reply is assumed to be the
	// answer to relay verbatim to the customer.
	TypeRelay       ResponseType = "relay"
	TypeInstruction ResponseType = "instruction"
	TypeResolve     ResponseType = "resolve"
	TypeDraft       ResponseType = "draft"
	TypeTakeover    ResponseType = "takeover"
)

// Email is one outbound escalation notice to a human supervisor.
type Email struct {
	ID               uuid.UUID     `json:"id"`
	ThreadID         uuid.UUID     `json:"thread_id"`
	Recipient        string        `json:"recipient"`
	Subject          string        `json:"subject"`
	Body             string        `json:"body"`
	MessageID        *string       `json:"message_id"`
	SendError        *string       `json:"send_error"`
	ResponseReceived bool          `json:"response_received"`
	ResponseType     *ResponseType `json:"response_type"`
	ResponseContent  *string       `json:"response_content"`
	RespondedAt      *time.Time    `json:"responded_at"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CreateCommand carries the data needed to record an outbound notice.
type CreateCommand struct {
	ThreadID  uuid.UUID
	Recipient string
	Subject   string
	Body      string
}

// Dispatch step names recorded in outcomes.
const (
	StepSaveReplyDraft      = "save_reply_draft"
	StepAppendInstruction   = "append_instruction"
	StepSaveInterimDraft    = "save_interim_draft"
	StepResolveThread       = "resolve_thread"
	StepSaveResolutionDraft = "save_resolution_draft"
	StepLoadMessages        = "load_messages"
	StepGenerateDraft       = "generate_draft"
	StepSaveSupervisedDraft = "save_supervised_draft"
	StepMarkHumanHandling   = "mark_human_handling"
	StepAssignHandler       = "assign_handler"
	StepSubmitKnowledge     = "submit_knowledge_candidate"
)

// Outcome records the result of one dispatch sub-action. A failed sub-action
// never aborts its siblings; every outcome is reported.
type Outcome struct {
	Step  string `json:"step"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the sub-action succeeded.
func (o Outcome) OK() bool {
	return o.Error == ""
}

// DispatchResult summarizes the processing of one supervisor reply.
type DispatchResult struct {
	EmailID  uuid.UUID    `json:"email_id"`
	ThreadID uuid.UUID    `json:"thread_id"`
	Type     ResponseType `json:"type"`
	Tags     []string     `json:"tags"`
	Content  string       `json:"content"`
	Outcomes []Outcome    `json:"outcomes"`
}

// Succeeded reports whether the named dispatch step ran and completed without
// error. A step that never ran reports false.
func (r *DispatchResult) Succeeded(step string) bool {
	for _, o := range r.Outcomes {
		if o.Step == step {
			return o.OK()
		}
	}
	return false
}
