package verification

import (
	"encoding/json"
	"fmt"

	"github.com/stillpoint/parley/pkg/query"
	"github.com/stillpoint/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "verification_records", "v").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("status", "Status").
	Project("order_number", "OrderNumber").
	Project("email", "Email").
	Project("flags", "Flags").
	Project("customer_snapshot", "Customer").
	Project("order_snapshot", "Order").
	Project("note", "Note").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		r        Record
		flags    []byte
		customer []byte
		order    []byte
	)

	err := s.Scan(
		&r.ID,
		&r.ThreadID,
		&r.Status,
		&r.OrderNumber,
		&r.Email,
		&flags,
		&customer,
		&order,
		&r.Note,
		&r.CreatedAt,
	)
	if err != nil {
		return r, err
	}

	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &r.Flags); err != nil {
			return r, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	if r.Flags == nil {
		r.Flags = []string{}
	}

	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &r.Customer); err != nil {
			return r, fmt.Errorf("unmarshal customer snapshot: %w", err)
		}
	}

	if len(order) > 0 {
		if err := json.Unmarshal(order, &r.Order); err != nil {
			return r, fmt.Errorf("unmarshal order snapshot: %w", err)
		}
	}

	return r, nil
}
