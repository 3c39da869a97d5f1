// Package learning implements the continuous-learning pipeline: it turns a
// resolved conversation into candidate knowledge-base and instruction changes,
// scores them, checks them against existing knowledge for duplication, and
// decides autonomously whether to publish them.
package learning

import (
	"time"

	"github.com/google/uuid"
)

// ProposalType classifies what a proposal would change.
type ProposalType string

const (
	TypeKBArticle         ProposalType = "kb_article"
	TypeInstructionUpdate ProposalType = "instruction_update"
)

// ProposalStatus is the review state of a proposal. A proposal moves from
// pending to approved or rejected exactly once; the decision is final.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusApproved ProposalStatus = "approved"
	StatusRejected ProposalStatus = "rejected"
)

// Proposal is one candidate change to the knowledge base or instruction set.
type Proposal struct {
	ID              uuid.UUID      `json:"id"`
	ThreadID        uuid.UUID      `json:"thread_id"`
	Type            ProposalType   `json:"type"`
	Title           string         `json:"title"`
	Summary         string         `json:"summary"`
	Content         string         `json:"content"`
	Confidence      float64        `json:"confidence"`
	DialogueQuality float64        `json:"dialogue_quality"`
	Similarity      float64        `json:"similarity"`
	DuplicateOf     *uuid.UUID     `json:"duplicate_of"`
	AutoApproved    bool           `json:"auto_approved"`
	Status          ProposalStatus `json:"status"`
	DecidedBy       *string        `json:"decided_by"`
	PublishedDocID  *uuid.UUID     `json:"published_doc_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Analysis is the per-thread summary of one pipeline run. One row per
// thread; a re-analyzed thread overwrites its prior summary.
type Analysis struct {
	ID                 uuid.UUID `json:"id"`
	ThreadID           uuid.UUID `json:"thread_id"`
	DialogueQuality    float64   `json:"dialogue_quality"`
	ProposalsGenerated int       `json:"proposals_generated"`
	AutoApproved       int       `json:"auto_approved"`
	Pending            int       `json:"pending"`
	AnalyzedAt         time.Time `json:"analyzed_at"`
}

// CreateProposalCommand carries the data needed to persist a proposal.
type CreateProposalCommand struct {
	ThreadID        uuid.UUID
	Type            ProposalType
	Title           string
	Summary         string
	Content         string
	Confidence      float64
	DialogueQuality float64
	Similarity      float64
	DuplicateOf     *uuid.UUID
	AutoApproved    bool
	Status          ProposalStatus
}

// ParseProposalType validates a stored proposal type string.
func ParseProposalType(s string) (ProposalType, bool) {
	switch ProposalType(s) {
	case TypeKBArticle, TypeInstructionUpdate:
		return ProposalType(s), true
	}
	return "", false
}
