package escalation

import (
	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "escalation_emails", "e").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("recipient", "Recipient").
	Project("subject", "Subject").
	Project("body", "Body").
	Project("message_id", "MessageID").
	Project("send_error", "SendError").
	Project("response_received", "ResponseReceived").
	Project("response_type", "ResponseType").
	Project("response_content", "ResponseContent").
	Project("responded_at", "RespondedAt").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

func scanEmail(s repository.Scanner) (Email, error) {
	var e Email
	err := s.Scan(
		&e.ID,
		&e.ThreadID,
		&e.Recipient,
		&e.Subject,
		&e.Body,
		&e.MessageID,
		&e.SendError,
		&e.ResponseReceived,
		&e.ResponseType,
		&e.ResponseContent,
		&e.RespondedAt,
		&e.CreatedAt,
	)
	return e, err
}
