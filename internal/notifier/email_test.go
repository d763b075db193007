package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"loco-platform/internal/model"
)

func TestEmailNotifierSendsDigest(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	n := NewEmailNotifier(EmailConfig{From: "from@example.com", To: []string{"to@example.com"}}, sender)

	start := 95000
	jobs := []model.Job{
		{ID: "1", Title: "Hospital Pharmacist", Company: "Westmead", Location: "Westmead NSW", SalaryRangeStart: &start},
		{ID: "2", Title: "Locum Pharmacist", Company: "Priceline", IsUrgent: true},
	}
	if err := n.Notify(context.Background(), jobs); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send call, got %d", sender.calls)
	}
	if sender.last.Subject != "New pharmacy jobs (2)" {
		t.Fatalf("unexpected subject %q", sender.last.Subject)
	}
	for _, want := range []string{"Hospital Pharmacist, Westmead", "From $95,000", "[URGENT] Locum Pharmacist", "Competitive"} {
		if !strings.Contains(sender.last.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, sender.last.Body)
		}
	}
}

func TestEmailNotifierUrgentOnly(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	n := NewEmailNotifier(EmailConfig{From: "f@x", To: []string{"t@x"}, UrgentOnly: true}, sender)

	if err := n.Notify(context.Background(), []model.Job{{ID: "1", Title: "Regular"}}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no mail without urgent jobs, got %d", sender.calls)
	}

	if err := n.Notify(context.Background(), []model.Job{{ID: "1", Title: "Regular"}, {ID: "2", Title: "Urgent", IsUrgent: true}}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 1 || strings.Contains(sender.last.Body, "Regular") {
		t.Fatalf("expected urgent-only body, got %q", sender.last.Body)
	}
}

func TestEmailNotifierSkipsWhenEmpty(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	n := NewEmailNotifier(EmailConfig{}, sender)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send calls, got %d", sender.calls)
	}
}

func TestEmailNotifierWrapsSendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("smtp down")
	n := NewEmailNotifier(EmailConfig{}, &stubSender{err: boom})
	if err := n.Notify(context.Background(), []model.Job{{ID: "1"}}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestEmailConfigEnabled(t *testing.T) {
	t.Parallel()

	if (EmailConfig{Host: "smtp.example.com"}).Enabled() {
		t.Fatalf("config without sender/recipients should be disabled")
	}
	if !(EmailConfig{Host: "smtp.example.com", From: "a@b", To: []string{"c@d"}}).Enabled() {
		t.Fatalf("complete config should be enabled")
	}
}

func TestBuildEmailDataHeaders(t *testing.T) {
	t.Parallel()

	data := buildEmailData(EmailMessage{From: "a@b", To: []string{"c@d", "e@f"}, Subject: "Hi", Body: "body"})
	if !strings.HasPrefix(data, "From: a@b\r\nTo: c@d,e@f\r\nSubject: Hi\r\n") || !strings.HasSuffix(data, "\r\n\r\nbody") {
		t.Fatalf("unexpected message data %q", data)
	}
}

// --- stubs ---

type stubSender struct {
	calls int
	last  EmailMessage
	err   error
}

func (s *stubSender) Send(ctx context.Context, msg EmailMessage) error {
	s.calls++
	s.last = msg
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}
