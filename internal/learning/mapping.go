package learning

import (
	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

var proposalProjection = query.
	NewProjectionMap("public", "learning_proposals", "p").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("type", "Type").
	Project("title", "Title").
	Project("summary", "Summary").
	Project("content", "Content").
	Project("confidence", "Confidence").
	Project("dialogue_quality", "DialogueQuality").
	Project("similarity", "Similarity").
	Project("duplicate_of", "DuplicateOf").
	Project("auto_approved", "AutoApproved").
	Project("status", "Status").
	Project("decided_by", "DecidedBy").
	Project("published_doc_id", "PublishedDocID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var proposalSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

func scanProposal(s repository.Scanner) (Proposal, error) {
	var p Proposal
	err := s.Scan(
		&p.ID,
		&p.ThreadID,
		&p.Type,
		&p.Title,
		&p.Summary,
		&p.Content,
		&p.Confidence,
		&p.DialogueQuality,
		&p.Similarity,
		&p.DuplicateOf,
		&p.AutoApproved,
		&p.Status,
		&p.DecidedBy,
		&p.PublishedDocID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

var analysisProjection = query.
	NewProjectionMap("public", "resolution_analyses", "a").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("dialogue_quality", "DialogueQuality").
	Project("proposals_generated", "ProposalsGenerated").
	Project("auto_approved", "AutoApproved").
	Project("pending", "Pending").
	Project("analyzed_at", "AnalyzedAt")

func scanAnalysis(s repository.Scanner) (Analysis, error) {
	var a Analysis
	err := s.Scan(
		&a.ID,
		&a.ThreadID,
		&a.DialogueQuality,
		&a.ProposalsGenerated,
		&a.AutoApproved,
		&a.Pending,
		&a.AnalyzedAt,
	)
	return a, err
}
