package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type failingStore struct{ err error }

func (s failingStore) Append(context.Context, Entry) error { return s.err }
func (s failingStore) Query(context.Context, Query) ([]Entry, error) { return nil, s.err }

func TestRecorderStampsRequestInfo(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store)

	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "192.0.2.10",
		UserAgent: "curl/8",
		RequestID: "req-1",
	})
	rec.Record(ctx, Authentication(uuid.New(), "a@x.com", true, ""))
	rec.Record(ctx, New(Options{Action: ActionLogout, Description: "d", IPAddress: "198.51.100.1"}))

	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].IPAddress != "192.0.2.10" || entries[0].UserAgent != "curl/8" || entries[0].RequestID != "req-1" {
		t.Fatalf("request info not stamped: %+v", entries[0])
	}
	if entries[1].IPAddress != "198.51.100.1" {
		t.Fatalf("explicit ip overwritten: %q", entries[1].IPAddress)
	}
}

func TestRecorderSwallowsStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	storeErr := errors.New("disk full")

	var hooked error
	rec := NewRecorder(failingStore{err: storeErr},
		WithLogger(logger),
		WithFailureHook(func(err error) { hooked = err }),
	)

	rec.Record(context.Background(), Authentication(uuid.Nil, "ghost@x.com", false, "Invalid email or password"))

	if !errors.Is(hooked, storeErr) {
		t.Fatalf("failure hook not called with store error: %v", hooked)
	}
	out := buf.String()
	if !strings.Contains(out, "audit write failed") || !strings.Contains(out, "login_failed") || !strings.Contains(out, "disk full") {
		t.Fatalf("fallback log missing details: %s", out)
	}
}

func TestRecorderRecordHookAndNil(t *testing.T) {
	var seen []Action
	rec := NewRecorder(NewMemoryStore(), WithRecordHook(func(e Entry) { seen = append(seen, e.Action) }))
	rec.Record(context.Background(), Account(Actor{ID: uuid.New()}, ActionLogout))
	if len(seen) != 1 || seen[0] != ActionLogout {
		t.Fatalf("record hook not called: %v", seen)
	}

	var nilRec *Recorder
	nilRec.Record(context.Background(), Account(Actor{ID: uuid.New()}, ActionLogout))
}

func TestRecorderQueries(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewMemoryStore())
	user := uuid.New()
	patient := uuid.New()
	actor := Actor{ID: user, Email: "doc@x.com"}

	rec.Record(ctx, Authentication(user, "doc@x.com", true, ""))
	rec.Record(ctx, PatientManagement(actor, ActionPatientViewed, patient, "Jane"))
	rec.Record(ctx, Authentication(uuid.Nil, "ghost@x.com", false, "bad"))
	rec.Record(ctx, SecurityEvent(ActionUnauthorizedAccess, SeverityWarning, "denied", &actor, nil))

	activity, err := rec.UserActivity(ctx, user, 0)
	if err != nil {
		t.Fatalf("user activity: %v", err)
	}
	if len(activity) != 3 {
		t.Fatalf("expected 3 entries for user, got %d", len(activity))
	}

	onPatient, _ := rec.ResourceActivity(ctx, "patient", patient, 10)
	if len(onPatient) != 1 || onPatient[0].Action != ActionPatientViewed {
		t.Fatalf("unexpected resource activity %+v", onPatient)
	}

	security, _ := rec.SecurityLogs(ctx, 10, 0)
	if len(security) != 2 {
		t.Fatalf("expected 2 security entries, got %d", len(security))
	}
}
