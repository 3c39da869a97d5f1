package verification_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/stillpoint/parley/internal/orders"
	"github.com/stillpoint/parley/internal/verification"
)

// testOrder builds an orders.Order without dragging lookup details into
// every test case.
type testOrder struct {
	email        string
	tags         []string
	note         *string
	customerTags []string
	customerNote *string
}

func (o *testOrder) build() *orders.Order {
	return &orders.Order{
		ID:     "gid://1",
		Number: "12345",
		Status: "fulfilled",
		Email:  o.email,
		Tags:   o.tags,
		Note:   o.note,
		Customer: &orders.Customer{
			Email:       o.email,
			FirstName:   "Kim",
			LastName:    "Park",
			Tags:        o.customerTags,
			Note:        o.customerNote,
			OrdersCount: 3,
			TotalSpent:  "120.00",
		},
	}
}

type fakeVerifStore struct {
	verified *verification.Record
	inserted []verification.InsertCommand
}

func (f *fakeVerifStore) FindVerified(ctx context.Context, threadID uuid.UUID) (*verification.Record, error) {
	if f.verified != nil {
		return f.verified, nil
	}
	return nil, verification.ErrNotFound
}

func (f *fakeVerifStore) Insert(ctx context.Context, cmd verification.InsertCommand) (*verification.Record, error) {
	f.inserted = append(f.inserted, cmd)
	return &verification.Record{
		ID:          uuid.New(),
		ThreadID:    cmd.ThreadID,
		Status:      cmd.Status,
		OrderNumber: cmd.OrderNumber,
		Email:       cmd.Email,
		Flags:       cmd.Flags,
		Customer:    cmd.Customer,
		Order:       cmd.Order,
		Note:        cmd.Note,
	}, nil
}

func (f *fakeVerifStore) Latest(ctx context.Context, threadID uuid.UUID) (*verification.Record, error) {
	return nil, verification.ErrNotFound
}

func (f *fakeVerifStore) History(ctx context.Context, threadID uuid.UUID) ([]verification.Record, error) {
	return nil, nil
}

type fakeLookup struct {
	configured bool
	order      *orders.Order
	err        error
	calls      int
}

func (f *fakeLookup) Configured() bool { return f.configured }

func (f *fakeLookup) OrderByNumber(ctx context.Context, number string) (*orders.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeLookup) CustomerByEmail(ctx context.Context, email string) (*orders.Customer, error) {
	return nil, orders.ErrNotFound
}

type fakeMirror struct {
	statuses []string
}

func (f *fakeMirror) SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func gateConfig(t *testing.T) verification.Config {
	t.Helper()
	cfg := verification.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	return cfg
}

func newGate(store *fakeVerifStore, lookup *fakeLookup, mirror *fakeMirror, cfg verification.Config) verification.System {
	return verification.NewGate(store, lookup, mirror, cfg, slog.Default())
}

func TestVerifyCachedShortCircuit(t *testing.T) {
	threadID := uuid.New()
	cached := &verification.Record{
		ID:       uuid.New(),
		ThreadID: threadID,
		Status:   verification.StatusVerified,
	}
	store := &fakeVerifStore{verified: cached}
	lookup := &fakeLookup{configured: true}

	gate := newGate(store, lookup, &fakeMirror{}, gateConfig(t))

	got, err := gate.Verify(context.Background(), verification.Request{
		ThreadID:    threadID,
		MessageText: "where is order #12345?",
	})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if got.ID != cached.ID {
		t.Errorf("got record %s, want cached %s", got.ID, cached.ID)
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times, want 0", lookup.calls)
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted %d records, want 0", len(store.inserted))
	}
}

func TestVerifyNoOrderIdentifierFailsClosed(t *testing.T) {
	store := &fakeVerifStore{}
	lookup := &fakeLookup{configured: true}
	gate := newGate(store, lookup, &fakeMirror{}, gateConfig(t))

	got, err := gate.Verify(context.Background(), verification.Request{
		ThreadID:    uuid.New(),
		MessageText: "my package never showed up",
	})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if got.Status != verification.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times, want 0", lookup.calls)
	}
}

func TestVerifyUnconfiguredLookup(t *testing.T) {
	t.Run("default auto-verifies", func(t *testing.T) {
		store := &fakeVerifStore{}
		mirror := &fakeMirror{}
		gate := newGate(store, &fakeLookup{configured: false}, mirror, gateConfig(t))

		got, err := gate.Verify(context.Background(), verification.Request{
			ThreadID:    uuid.New(),
			MessageText: "order #12345 status?",
		})
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if got.Status != verification.StatusVerified {
			t.Errorf("Status = %s, want verified", got.Status)
		}
		if len(mirror.statuses) != 1 || mirror.statuses[0] != "verified" {
			t.Errorf("mirrored statuses = %v", mirror.statuses)
		}
	})

	t.Run("strict policy fails closed", func(t *testing.T) {
		cfg := gateConfig(t)
		cfg.StrictWhenUnconfigured = true
		store := &fakeVerifStore{}
		gate := newGate(store, &fakeLookup{configured: false}, &fakeMirror{}, cfg)

		got, err := gate.Verify(context.Background(), verification.Request{
			ThreadID:    uuid.New(),
			MessageText: "order #12345 status?",
		})
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if got.Status != verification.StatusPending {
			t.Errorf("Status = %s, want pending", got.Status)
		}
	})
}

func TestVerifyOutcomes(t *testing.T) {
	flaggedNote := "customer filed a dispute"

	tests := []struct {
		name       string
		lookup     *fakeLookup
		wantStatus verification.Status
		wantFlags  int
	}{
		{
			"order found and clean",
			&fakeLookup{configured: true, order: (&testOrder{email: "kim@example.com"}).build()},
			verification.StatusVerified, 0,
		},
		{
			"order missing",
			&fakeLookup{configured: true, err: orders.ErrNotFound},
			verification.StatusNotFound, 0,
		},
		{
			"lookup failure fails closed",
			&fakeLookup{configured: true, err: errors.New("api timeout")},
			verification.StatusPending, 0,
		},
		{
			"flagged account",
			&fakeLookup{configured: true, order: (&testOrder{
				email: "kim@example.com",
				note:  &flaggedNote,
			}).build()},
			verification.StatusFlagged, 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeVerifStore{}
			gate := newGate(store, tc.lookup, &fakeMirror{}, gateConfig(t))

			got, err := gate.Verify(context.Background(), verification.Request{
				ThreadID:    uuid.New(),
				MessageText: "checking on order #12345 from kim@example.com",
			})
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tc.wantStatus)
			}
			if len(got.Flags) != tc.wantFlags {
				t.Errorf("Flags = %v, want %d entries", got.Flags, tc.wantFlags)
			}
		})
	}
}

func TestVerifyEmailMismatchStillVerifies(t *testing.T) {
	store := &fakeVerifStore{}
	lookup := &fakeLookup{
		configured: true,
		order:      (&testOrder{email: "someone.else@example.com"}).build(),
	}
	gate := newGate(store, lookup, &fakeMirror{}, gateConfig(t))

	got, err := gate.Verify(context.Background(), verification.Request{
		ThreadID:    uuid.New(),
		MessageText: "checking on order #12345 from kim@example.com",
	})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	// Ownership of the order number is the binding proof; the mismatch is
	// logged, not blocking.
	if got.Status != verification.StatusVerified {
		t.Errorf("Status = %s, want verified", got.Status)
	}
}

func TestVerifyKnownIdentifiersBeatExtraction(t *testing.T) {
	store := &fakeVerifStore{}
	lookup := &fakeLookup{configured: true, order: (&testOrder{email: "kim@example.com"}).build()}
	gate := newGate(store, lookup, &fakeMirror{}, gateConfig(t))

	known := "99999"
	_, err := gate.Verify(context.Background(), verification.Request{
		ThreadID:         uuid.New(),
		KnownOrderNumber: &known,
		MessageText:      "my order is #11111",
	})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(store.inserted))
	}
	if got := store.inserted[0].OrderNumber; got == nil || *got != known {
		t.Errorf("OrderNumber = %v, want %s", got, known)
	}
}
