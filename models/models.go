package models

import (
	"fmt"
	"time"
)

type User struct {
	ID           uint   `gorm:"primarykey"`
	Handle       string `gorm:"uniqueIndex;not null"`
	Email        string
	Reputation   int    `gorm:"not null;default:0"`
	Tier         string `gorm:"not null;default:'newcomer'"`
	IsVerified   bool   `gorm:"not null;default:false"`
	IsBanned     bool   `gorm:"not null;default:false"`
	BanReason    string
	LastActiveAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContentType discriminates the per-variant content tables. It is validated
// at the system boundary; storage and ledger code can assume it is one of
// the three known values.
type ContentType string

const (
	ContentTypePost    = ContentType("post")
	ContentTypeReview  = ContentType("review")
	ContentTypeComment = ContentType("comment")
)

func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentTypePost, ContentTypeReview, ContentTypeComment:
		return ContentType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown content type %q", ErrValidation, s)
	}
}

// TableFor maps a content type to its backing table.
func TableFor(t ContentType) string {
	switch t {
	case ContentTypePost:
		return "posts"
	case ContentTypeReview:
		return "reviews"
	case ContentTypeComment:
		return "comments"
	default:
		return ""
	}
}

// ContentRef addresses a single content unit across the variant tables.
type ContentRef struct {
	ID   uint
	Type ContentType
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// ContentUnit is the shared projection of a row from any of the variant
// tables. It is not itself a table.
type ContentUnit struct {
	ID               uint
	AuthorID         uint
	Body             string
	Tags             string
	Upvotes          int64
	Downvotes        int64
	ModerationStatus ModerationStatus
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *ContentUnit) NetScore() int64 {
	return c.Upvotes - c.Downvotes
}

type Post struct {
	ID               uint   `gorm:"primarykey"`
	AuthorID         uint   `gorm:"index;not null"`
	Body             string `gorm:"not null"`
	Tags             string
	Upvotes          int64            `gorm:"not null;default:0"`
	Downvotes        int64            `gorm:"not null;default:0"`
	ModerationStatus ModerationStatus `gorm:"not null;default:'pending';index"`
	Version          int64            `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Review struct {
	ID               uint   `gorm:"primarykey"`
	AuthorID         uint   `gorm:"index;not null"`
	Body             string `gorm:"not null"`
	Tags             string
	Rating           int              `gorm:"not null;default:0"`
	Upvotes          int64            `gorm:"not null;default:0"`
	Downvotes        int64            `gorm:"not null;default:0"`
	ModerationStatus ModerationStatus `gorm:"not null;default:'pending';index"`
	Version          int64            `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Comment struct {
	ID               uint   `gorm:"primarykey"`
	AuthorID         uint   `gorm:"index;not null"`
	ParentID         uint   `gorm:"index"`
	Body             string `gorm:"not null"`
	Tags             string
	Upvotes          int64            `gorm:"not null;default:0"`
	Downvotes        int64            `gorm:"not null;default:0"`
	ModerationStatus ModerationStatus `gorm:"not null;default:'pending';index"`
	Version          int64            `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type VoteDir string

const (
	VoteDirUp   = VoteDir("up")
	VoteDirDown = VoteDir("down")
	// VoteDirNone is a retraction. The ledger row survives so that the
	// last-write-wins history per (user, content) stays intact.
	VoteDirNone = VoteDir("none")
)

func ParseVoteDir(s string) (VoteDir, error) {
	switch VoteDir(s) {
	case VoteDirUp, VoteDirDown, VoteDirNone:
		return VoteDir(s), nil
	default:
		return "", fmt.Errorf("%w: unknown vote direction %q", ErrValidation, s)
	}
}

type Vote struct {
	ID          uint        `gorm:"primarykey"`
	UserID      uint        `gorm:"uniqueIndex:idx_vote_user_content;not null"`
	ContentID   uint        `gorm:"uniqueIndex:idx_vote_user_content;not null"`
	ContentType ContentType `gorm:"uniqueIndex:idx_vote_user_content;not null"`
	Dir         VoteDir     `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ReportReason string

const (
	ReportReasonSpam       = ReportReason("spam")
	ReportReasonHarassment = ReportReason("harassment")
	ReportReasonMisleading = ReportReason("misleading")
	ReportReasonSexual     = ReportReason("sexual")
	ReportReasonViolence   = ReportReason("violence")
	ReportReasonOther      = ReportReason("other")
)

func ParseReportReason(s string) (ReportReason, error) {
	switch ReportReason(s) {
	case ReportReasonSpam, ReportReasonHarassment, ReportReasonMisleading,
		ReportReasonSexual, ReportReasonViolence, ReportReasonOther:
		return ReportReason(s), nil
	default:
		return "", fmt.Errorf("%w: unknown report reason %q", ErrValidation, s)
	}
}

type ReportStatus string

const (
	ReportStatusPending     = ReportStatus("pending")
	ReportStatusReviewed    = ReportStatus("reviewed")
	ReportStatusActionTaken = ReportStatus("action_taken")
	ReportStatusDismissed   = ReportStatus("dismissed")
)

// Open reports whether a report still awaits moderator review. Everything
// past pending is terminal.
func (s ReportStatus) Open() bool {
	return s == ReportStatusPending
}

type Report struct {
	ID          uint         `gorm:"primarykey"`
	ReporterID  uint         `gorm:"index:idx_report_reporter_content;not null"`
	ContentID   uint         `gorm:"index:idx_report_reporter_content;not null"`
	ContentType ContentType  `gorm:"index:idx_report_reporter_content;not null"`
	Reason      ReportReason `gorm:"not null"`
	Context     string
	Status      ReportStatus `gorm:"not null;default:'pending';index"`
	ReviewedBy  *uint
	ReviewedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *Report) Ref() ContentRef {
	return ContentRef{ID: r.ContentID, Type: r.ContentType}
}

// Mention is append-only and written exclusively by server-side extraction.
// MentionedID stays nil until the handle resolves to a known user.
type Mention struct {
	ID          uint        `gorm:"primarykey"`
	ContentID   uint        `gorm:"uniqueIndex:idx_mention_content_handle;not null"`
	ContentType ContentType `gorm:"uniqueIndex:idx_mention_content_handle;not null"`
	Handle      string      `gorm:"uniqueIndex:idx_mention_content_handle;not null"`
	MentionedID *uint
	Notified    bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
}
