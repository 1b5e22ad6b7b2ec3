package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type failingSink struct{}

func (failingSink) Record(context.Context, Event) error { return errors.New("disk full") }

func TestRecorder_LogPayment(t *testing.T) {
	sink := NewMemorySink()
	recorder := NewRecorder(sink, nil)
	ctx := WithClientIP(context.Background(), "10.0.0.7")

	if err := recorder.LogPayment(ctx, "user-1", "FIAT", "30.00", "PARKING"); err != nil {
		t.Fatalf("log payment: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	event := events[0]
	if event.EventType != EventPayment || event.Action != "PAYMENT_PROCESSED" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Details != "Payment: FIAT, Amount: 30.00, Service: PARKING" {
		t.Fatalf("unexpected details: %q", event.Details)
	}
	if event.IP != "10.0.0.7" {
		t.Fatalf("expected ip from context, got %q", event.IP)
	}
	if event.ID == "" || event.CreatedAt.IsZero() || event.PayloadDigest == "" {
		t.Fatalf("expected generated fields: %+v", event)
	}
}

func TestRecorder_LogsSinkFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	recorder := NewRecorder(failingSink{}, logger)

	if err := recorder.LogSecurityEvent(context.Background(), "user-1", "boom"); err == nil {
		t.Fatalf("expected sink error")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning, got %+v", entry)
	}
	if entry.Data["action"] != "SECURITY_ALERT" {
		t.Fatalf("unexpected fields: %v", entry.Data)
	}
}

func TestMemorySink_ListFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	recorder := NewRecorder(sink, nil)
	ctx := context.Background()
	_ = recorder.LogAuthentication(ctx, "user-1", "LOGIN")
	_ = recorder.LogAdminAction(ctx, "admin-1", "DEPOSIT", "user-1 fiat 10")
	_ = recorder.LogSystemEvent(ctx, "STARTUP", "")
	_ = recorder.LogAdminAction(ctx, "admin-1", "DEPOSIT", "user-2 fiat 5")

	admin, err := sink.List(ctx, EventAdminAction, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(admin) != 2 || admin[0].Details != "user-2 fiat 5" {
		t.Fatalf("expected newest admin first, got %+v", admin)
	}
	all, _ := sink.List(ctx, "", 3)
	if len(all) != 3 {
		t.Fatalf("expected limit 3, got %d", len(all))
	}
	if err := sink.Record(ctx, Event{EventType: EventSystem}); !errors.Is(err, ErrEmptyAction) {
		t.Fatalf("expected empty action error, got %v", err)
	}
}

func TestParseEventType(t *testing.T) {
	if got, ok := ParseEventType("PAYMENT"); !ok || got != EventPayment {
		t.Fatalf("expected PAYMENT, got %q %v", got, ok)
	}
	if _, ok := ParseEventType("payment"); ok {
		t.Fatalf("expected lowercase to be rejected")
	}
	if got, ok := ParseEventType(""); !ok || got != "" {
		t.Fatalf("expected empty filter to pass")
	}
}
