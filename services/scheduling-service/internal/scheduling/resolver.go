package scheduling

import (
	"context"
	"fmt"

	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
)

// Resolver maintains the blocking links between a booked onsite slot and the
// candidate's other slots on the same day. It only runs inside a caller's Tx.
type Resolver struct{}

// Block marks the candidate's other available slots on booked's day as blocked by it.
// Online and dual-mode bookings block nothing.
func (Resolver) Block(ctx context.Context, tx Tx, booked model.Schedule) ([]model.Schedule, error) {
	if booked.InterviewType != model.InterviewOnsite {
		return nil, nil
	}
	blocked, err := tx.BlockSameDay(ctx, booked)
	if err != nil {
		return nil, fmt.Errorf("block same-day slots of %s: %w", booked.ID, err)
	}
	return blocked, nil
}

// Release returns every slot blocked by cancelled to available and clears the link.
// It is a no-op unless cancelled is an onsite slot.
func (Resolver) Release(ctx context.Context, tx Tx, cancelled model.Schedule) ([]model.Schedule, error) {
	if cancelled.InterviewType != model.InterviewOnsite {
		return nil, nil
	}
	released, err := tx.ReleaseBlockedBy(ctx, cancelled.ID)
	if err != nil {
		return nil, fmt.Errorf("release slots blocked by %s: %w", cancelled.ID, err)
	}
	return released, nil
}
