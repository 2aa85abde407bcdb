package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testEpoch = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func entryAt(offset time.Duration, action Action, actorID uuid.UUID) Entry {
	opts := Options{Action: action, Description: action.String(), Timestamp: testEpoch.Add(offset)}
	if actorID != uuid.Nil {
		opts.Actor = &Actor{ID: actorID}
	}
	return New(opts)
}

func TestMemoryStoreQueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice, bob := uuid.New(), uuid.New()

	for i, e := range []Entry{
		entryAt(1*time.Minute, ActionLogin, alice),
		entryAt(3*time.Minute, ActionLogout, alice),
		entryAt(2*time.Minute, ActionLogin, bob),
		entryAt(4*time.Minute, ActionLoginFailed, uuid.Nil),
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatalf("entries not newest first at %d", i)
		}
	}

	mine, _ := store.Query(ctx, Query{UserID: alice})
	if len(mine) != 2 || mine[0].Action != ActionLogout {
		t.Fatalf("unexpected user activity %+v", mine)
	}

	paged, _ := store.Query(ctx, Query{Limit: 2, Offset: 1})
	if len(paged) != 2 || paged[0].Action != ActionLogout {
		t.Fatalf("unexpected page %+v", paged)
	}

	window, _ := store.Query(ctx, Query{Start: testEpoch.Add(2 * time.Minute), End: testEpoch.Add(3 * time.Minute)})
	if len(window) != 2 {
		t.Fatalf("expected 2 entries in window, got %d", len(window))
	}

	beyond, _ := store.Query(ctx, Query{Offset: 10})
	if beyond == nil || len(beyond) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", beyond)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Append(ctx, entryAt(0, ActionLogin, uuid.New()))

	got, _ := store.Query(ctx, Query{})
	got[0].Description = "tampered"
	got[0].Actor.Email = "tampered"

	again := store.Entries()
	if again[0].Description == "tampered" || again[0].Actor.Email == "tampered" {
		t.Fatal("stored entry was modified through a query result")
	}
}

func TestQueryNormalized(t *testing.T) {
	if q := (Query{}).Normalized(); q.Limit != DefaultQueryLimit {
		t.Fatalf("expected default limit, got %d", q.Limit)
	}
	if q := (Query{Limit: 5000, Offset: -3}).Normalized(); q.Limit != MaxQueryLimit || q.Offset != 0 {
		t.Fatalf("unexpected clamp %+v", q)
	}
}

func TestQueryMatchesFilters(t *testing.T) {
	warn := SeverityWarning
	res := uuid.New()
	e := New(Options{
		Action:      ActionPatientViewed,
		Severity:    SeverityWarning,
		Resource:    &Resource{Type: "patient", ID: res},
		Description: "d",
		IPAddress:   "10.1.1.1",
	})

	if !(Query{Severity: &warn, ResourceType: "patient", ResourceID: res, IPAddress: "10.1.1.1"}).Matches(e) {
		t.Fatal("expected match")
	}
	if (Query{ResourceType: "device"}).Matches(e) {
		t.Fatal("resource type should not match")
	}
	if (Query{Actions: SecurityActions}).Matches(e) {
		t.Fatal("patient view is not a security action")
	}
	if (Query{UserID: uuid.New()}).Matches(e) {
		t.Fatal("entry without actor should not match a user filter")
	}
}

func TestJSONWriterStore(t *testing.T) {
	var buf bytes.Buffer
	store := NewJSONWriterStore(&buf)
	ctx := context.Background()

	_ = store.Append(ctx, entryAt(0, ActionLogin, uuid.New()))
	_ = store.Append(ctx, entryAt(time.Second, ActionLogout, uuid.New()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Entry
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if e.Action != ActionLogout {
		t.Fatalf("unexpected action %v", e.Action)
	}

	if _, err := store.Query(ctx, Query{}); !errors.Is(err, ErrQueryUnsupported) {
		t.Fatalf("expected ErrQueryUnsupported, got %v", err)
	}
}
