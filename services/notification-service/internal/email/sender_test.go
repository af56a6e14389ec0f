package email

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuildMessageHeaders(t *testing.T) {
	date := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	msg := buildMessage("no-reply@interviewdesk.local", "ada@example.com", "Interview\r\nBcc: x@evil", "line one\nline two", date, "<id@interviewdesk.local>")

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok {
		t.Fatalf("message has no header/body separator: %q", msg)
	}
	if !strings.Contains(head, "Subject: Interview  Bcc: x@evil\r\n") {
		t.Fatalf("subject not sanitized: %q", head)
	}
	if !strings.Contains(head, "Date: Mon, 10 Mar 2025 09:00:00 +0000") {
		t.Fatalf("unexpected date header: %q", head)
	}
	if !strings.Contains(head, "Message-ID: <id@interviewdesk.local>") {
		t.Fatalf("missing message id: %q", head)
	}
	if body != "line one\r\nline two\r\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSendRejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: "1"})
	if err := s.Send(context.Background(), "a@example.com\r\nBcc: b@example.com", "s", "b"); err == nil {
		t.Fatalf("expected invalid recipient error")
	}
}

func TestMessageIDUsesSenderDomain(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "talent@agency.example"})
	if id := s.messageID(); !strings.HasSuffix(id, "@agency.example>") {
		t.Fatalf("unexpected message id %q", id)
	}
}
