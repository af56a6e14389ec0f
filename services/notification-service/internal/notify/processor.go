// Package notify turns booking events into candidate emails.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/interviewdesk/platform/libs/kafkax"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/notification-service/internal/consumer"
	"github.com/interviewdesk/platform/services/notification-service/internal/email"
	"github.com/interviewdesk/platform/services/notification-service/internal/storage"
	"github.com/interviewdesk/platform/services/notification-service/internal/templates"
	"github.com/segmentio/kafka-go"
)

// Consumed topics.
const (
	TopicBookingConfirmed = "scheduling.booking.confirmed.v1"
	TopicBookingCancelled = "scheduling.booking.cancelled.v1"
)

// Produced event types.
const (
	EventNotificationSent   = "notification.sent.v1"
	EventNotificationFailed = "notification.failed.v1"
)

const channelEmail = "email"

// BookingEvent is the payload of the scheduling booking events.
type BookingEvent struct {
	BookingID      string   `json:"booking_id"`
	ScheduleID     string   `json:"schedule_id"`
	CandidateID    string   `json:"candidate_id"`
	CandidateName  string   `json:"candidate_name"`
	CandidateEmail string   `json:"candidate_email"`
	CompanyID      string   `json:"company_id"`
	CompanyName    string   `json:"company_name"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	InterviewType  string   `json:"interview_type"`
	ConfirmedAt    string   `json:"confirmed_at"`
	CancelledAt    string   `json:"cancelled_at"`
	Reason         string   `json:"reason"`
	BlockedIDs     []string `json:"blocked_schedule_ids"`
	ReleasedIDs    []string `json:"released_schedule_ids"`
}

// Store is the persistence the processor needs.
type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Save(ctx context.Context, n storage.Notification, evt outbox.Event) (bool, error)
}

type Options struct {
	// FailSuffix simulates delivery failures for recipients ending with it.
	FailSuffix string
	Now        func() time.Time
}

type Processor struct {
	store  Store
	sender email.Sender
	logger *slog.Logger
	opts   Options
}

func NewProcessor(store Store, sender email.Sender, logger *slog.Logger, opts Options) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{store: store, sender: sender, logger: logger, opts: opts}
}

// Handle processes one Kafka message. Malformed payloads fail permanently; storage
// errors are returned for retry. A send failure is recorded, not retried.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	kind, ok := kindFor(meta.EventType)
	if !ok {
		p.logger.WarnContext(ctx, "unexpected event type", "event_type", meta.EventType, "topic", msg.Topic)
		return nil
	}
	if meta.EventID == "" {
		return fmt.Errorf("event without id on %s: %w", msg.Topic, consumer.ErrPermanent)
	}

	seen, err := p.store.Seen(ctx, meta.EventID)
	if err != nil {
		return fmt.Errorf("check inbox: %w", err)
	}
	if seen {
		p.logger.InfoContext(ctx, "duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	var evt BookingEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", meta.EventType, err, consumer.ErrPermanent)
	}
	if evt.BookingID == "" || evt.ScheduleID == "" || evt.CandidateID == "" {
		return fmt.Errorf("%s payload missing ids: %w", meta.EventType, consumer.ErrPermanent)
	}

	rendered, err := templates.Render(kind, templates.Data{
		CandidateName: evt.CandidateName,
		CompanyName:   evt.CompanyName,
		Date:          evt.Date,
		StartTime:     evt.StartTime,
		EndTime:       evt.EndTime,
		InterviewType: evt.InterviewType,
		Reason:        evt.Reason,
		Released:      len(evt.ReleasedIDs),
	})
	if err != nil {
		return fmt.Errorf("%v: %w", err, consumer.ErrPermanent)
	}

	status, reason := p.deliver(ctx, evt.CandidateEmail, rendered)
	n := storage.Notification{
		EventID:     meta.EventID,
		EventType:   meta.EventType,
		BookingID:   evt.BookingID,
		ScheduleID:  evt.ScheduleID,
		CandidateID: evt.CandidateID,
		Channel:     channelEmail,
		Recipient:   evt.CandidateEmail,
		Subject:     rendered.Subject,
		Payload: map[string]any{
			"kind":         kind,
			"company_name": evt.CompanyName,
			"date":         evt.Date,
			"start_time":   evt.StartTime,
		},
		Status:        status,
		FailureReason: reason,
	}
	if status == "sent" {
		n.ProviderID = p.sender.ProviderID()
	}

	outcome, err := p.outcomeEvent(n, kind)
	if err != nil {
		return fmt.Errorf("%v: %w", err, consumer.ErrPermanent)
	}
	saved, err := p.store.Save(ctx, n, outcome)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	if !saved {
		p.logger.InfoContext(ctx, "duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	p.logger.InfoContext(ctx, "notification processed",
		"event_id", meta.EventID,
		"kind", kind,
		"booking_id", evt.BookingID,
		"status", status,
	)
	return nil
}

func (p *Processor) deliver(ctx context.Context, to string, msg templates.Message) (status, reason string) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "failed", "candidate has no email address"
	}
	if p.opts.FailSuffix != "" && strings.HasSuffix(to, p.opts.FailSuffix) {
		return "failed", "simulated failure"
	}
	if err := p.sender.Send(ctx, to, msg.Subject, msg.Body); err != nil {
		p.logger.ErrorContext(ctx, "email send failed", "err", err, "recipient", to)
		return "failed", err.Error()
	}
	return "sent", ""
}

func (p *Processor) outcomeEvent(n storage.Notification, kind string) (outbox.Event, error) {
	at := p.opts.Now().UTC().Format(time.RFC3339)
	payload := map[string]any{
		"booking_id":   n.BookingID,
		"schedule_id":  n.ScheduleID,
		"candidate_id": n.CandidateID,
		"channel":      n.Channel,
		"kind":         kind,
	}
	eventType := EventNotificationSent
	if n.Status == "sent" {
		payload["provider_id"] = n.ProviderID
		payload["sent_at"] = at
	} else {
		eventType = EventNotificationFailed
		payload["error_reason"] = n.FailureReason
		payload["failed_at"] = at
	}
	return outbox.NewEvent("notification", n.BookingID, eventType, payload)
}

func kindFor(eventType string) (string, bool) {
	switch eventType {
	case TopicBookingConfirmed:
		return templates.KindBookingConfirmed, true
	case TopicBookingCancelled:
		return templates.KindBookingCancelled, true
	default:
		return "", false
	}
}
