package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/orders"
)

type gate struct {
	store  Store
	lookup orders.Lookup
	mirror StatusMirror
	policy FlagPolicy
	cfg    Config
	logger *slog.Logger
}

// NewGate creates the verification gate implementing the System interface.
func NewGate(
	store Store,
	lookup orders.Lookup,
	mirror StatusMirror,
	cfg Config,
	logger *slog.Logger,
) System {
	return &gate{
		store:  store,
		lookup: lookup,
		mirror: mirror,
		policy: FlagPolicy{Keywords: cfg.FlagKeywords},
		cfg:    cfg,
		logger: logger.With("system", "verification"),
	}
}

func (g *gate) Verify(ctx context.Context, req Request) (*Record, error) {
	if cached, err := g.store.FindVerified(ctx, req.ThreadID); err == nil {
		g.logger.Info("verification short-circuited to cached verified record",
			"thread_id", req.ThreadID,
			"record_id", cached.ID,
		)
		return cached, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check verified cache: %w", err)
	}

	email := resolve(req.KnownEmail, func() string { return ExtractEmail(req.MessageText) })
	orderNumber := resolve(req.KnownOrderNumber, func() string { return ExtractOrderNumber(req.MessageText) })

	// No order identifier fails closed: sensitive actions may not proceed
	// until the customer supplies one.
	if orderNumber == nil {
		return g.record(ctx, InsertCommand{
			ThreadID: req.ThreadID,
			Status:   StatusPending,
			Email:    email,
			Note:     note("no order identifier found in message"),
		})
	}

	if !g.lookup.Configured() {
		if g.cfg.StrictWhenUnconfigured {
			return g.record(ctx, InsertCommand{
				ThreadID:    req.ThreadID,
				Status:      StatusPending,
				OrderNumber: orderNumber,
				Email:       email,
				Note:        note("order lookup not configured"),
			})
		}

		// Escape hatch for environments without a commerce integration:
		// auto-verify with no checks. Config.StrictWhenUnconfigured flips
		// this to fail closed.
		g.logger.Warn("order lookup not configured, auto-verifying",
			"thread_id", req.ThreadID,
			"order_number", *orderNumber,
		)
		return g.record(ctx, InsertCommand{
			ThreadID:    req.ThreadID,
			Status:      StatusVerified,
			OrderNumber: orderNumber,
			Email:       email,
		})
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeoutDuration())
	defer cancel()

	order, err := g.lookup.OrderByNumber(lookupCtx, *orderNumber)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return g.record(ctx, InsertCommand{
				ThreadID:    req.ThreadID,
				Status:      StatusNotFound,
				OrderNumber: orderNumber,
				Email:       email,
			})
		}

		// Any lookup failure fails closed to pending, with the cause
		// attached for operator visibility.
		g.logger.Error("order lookup failed", "thread_id", req.ThreadID, "error", err)
		return g.record(ctx, InsertCommand{
			ThreadID:    req.ThreadID,
			Status:      StatusPending,
			OrderNumber: orderNumber,
			Email:       email,
			Note:        note(fmt.Sprintf("order lookup failed: %v", err)),
		})
	}

	// Flags always win over a matching email: a risk marker escalates
	// before anything else.
	if flags := g.policy.Check(order); len(flags) > 0 {
		return g.record(ctx, InsertCommand{
			ThreadID:    req.ThreadID,
			Status:      StatusFlagged,
			OrderNumber: orderNumber,
			Email:       email,
			Flags:       flags,
			Customer:    customerSnapshot(order),
			Order:       orderSnapshot(order),
		})
	}

	// Order ownership is the binding proof; an email mismatch is a logged
	// soft check only.
	if email != nil && order.Email != "" && !strings.EqualFold(*email, order.Email) {
		g.logger.Warn("verification email mismatch",
			"thread_id", req.ThreadID,
			"order_number", *orderNumber,
			"message_email", *email,
			"order_email", order.Email,
		)
	}

	return g.record(ctx, InsertCommand{
		ThreadID:    req.ThreadID,
		Status:      StatusVerified,
		OrderNumber: orderNumber,
		Email:       email,
		Customer:    customerSnapshot(order),
		Order:       orderSnapshot(order),
	})
}

func (g *gate) Latest(ctx context.Context, threadID uuid.UUID) (*Record, error) {
	return g.store.Latest(ctx, threadID)
}

func (g *gate) History(ctx context.Context, threadID uuid.UUID) ([]Record, error) {
	return g.store.History(ctx, threadID)
}

// record persists the attempt and mirrors the outcome onto the thread row.
// Mirror failures are logged, not propagated: the record is the source of truth.
func (g *gate) record(ctx context.Context, cmd InsertCommand) (*Record, error) {
	r, err := g.store.Insert(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("persist verification: %w", err)
	}

	if g.mirror != nil {
		if err := g.mirror.SetVerificationStatus(ctx, r.ThreadID, string(r.Status)); err != nil {
			g.logger.Error("mirror verification status failed",
				"thread_id", r.ThreadID,
				"status", r.Status,
				"error", err,
			)
		}
	}

	return r, nil
}

func customerSnapshot(order *orders.Order) *CustomerSnapshot {
	if order.Customer == nil {
		return nil
	}

	return &CustomerSnapshot{
		Name:        strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName),
		OrdersCount: order.Customer.OrdersCount,
		TotalSpent:  order.Customer.TotalSpent,
	}
}

func orderSnapshot(order *orders.Order) *OrderSnapshot {
	snap := &OrderSnapshot{Status: order.Status}

	for _, f := range order.Fulfillments {
		for _, t := range f.TrackingInfo {
			snap.Tracking = append(snap.Tracking, t.Number)
		}
	}

	for _, li := range order.LineItems {
		snap.LineItems = append(snap.LineItems, fmt.Sprintf("%dx %s", li.Quantity, li.Title))
	}

	return snap
}

func resolve(known *string, extract func() string) *string {
	if known != nil && *known != "" {
		return known
	}
	if v := extract(); v != "" {
		return &v
	}
	return nil
}

func note(s string) *string {
	return &s
}
