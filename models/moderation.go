package models

import (
	"fmt"
	"time"
)

type ModerationStatus string

const (
	StatusPending     = ModerationStatus("pending")
	StatusApproved    = ModerationStatus("approved")
	StatusRejected    = ModerationStatus("rejected")
	StatusFlagged     = ModerationStatus("flagged")
	StatusUnderReview = ModerationStatus("under_review")
)

func ParseModerationStatus(s string) (ModerationStatus, error) {
	switch ModerationStatus(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusFlagged, StatusUnderReview:
		return ModerationStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown moderation status %q", ErrValidation, s)
	}
}

// ModerationEvent is the audit trail for status transitions. Rows are
// append-only; nothing ever updates or deletes them. ActorID is nil for
// automatic transitions.
type ModerationEvent struct {
	ID          uint        `gorm:"primarykey"`
	ContentID   uint        `gorm:"index:idx_modevent_content;not null"`
	ContentType ContentType `gorm:"index:idx_modevent_content;not null"`
	ActorID     *uint
	FromStatus  ModerationStatus `gorm:"not null"`
	ToStatus    ModerationStatus `gorm:"not null"`
	Reason      string
	CreatedAt   time.Time `gorm:"not null"`
}
