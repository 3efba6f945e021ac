package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/content"
	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/notifs"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reputation"
)

type Config struct {
	// ReportThreshold is the open-report count at which pending/approved
	// content is automatically flagged.
	ReportThreshold int
}

func DefaultConfig() Config {
	return Config{ReportThreshold: 3}
}

const maxCASRetries = 3

var errVersionConflict = errors.New("content version moved")

// validTransitions is the full transition table. approved and rejected are
// terminal for automatic transitions; the only way out is an explicit
// moderator reopen to under_review (or, for approved, re-flagging by the
// report threshold).
var validTransitions = map[models.ModerationStatus][]models.ModerationStatus{
	models.StatusPending:     {models.StatusApproved, models.StatusRejected, models.StatusFlagged, models.StatusUnderReview},
	models.StatusFlagged:     {models.StatusUnderReview, models.StatusApproved, models.StatusRejected},
	models.StatusUnderReview: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:    {models.StatusUnderReview, models.StatusFlagged},
	models.StatusRejected:    {models.StatusUnderReview},
}

// CanTransition reports whether from→to is a legal status change.
func CanTransition(from, to models.ModerationStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateMachine owns moderationStatus transitions and their audit trail.
type StateMachine struct {
	db       *gorm.DB
	rep      *reputation.Engine
	notifman *notifs.NotificationManager
	events   *events.EventManager
	cfg      Config

	log *slog.Logger
}

func NewStateMachine(db *gorm.DB, rep *reputation.Engine, notifman *notifs.NotificationManager, evtman *events.EventManager, cfg Config) (*StateMachine, error) {
	if err := db.AutoMigrate(&models.ModerationEvent{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Report{}); err != nil {
		return nil, err
	}

	if cfg.ReportThreshold <= 0 {
		cfg = DefaultConfig()
	}

	return &StateMachine{
		db:       db,
		rep:      rep,
		notifman: notifman,
		events:   evtman,
		cfg:      cfg,
		log:      slog.Default().With("system", "moderation"),
	}, nil
}

// applyTransition performs the CAS status update and appends the audit row
// inside tx. The version guard serializes it against concurrent counter and
// status mutation on the same unit.
func applyTransition(tx *gorm.DB, unit *models.ContentUnit, ref models.ContentRef, to models.ModerationStatus, actor *uint, reason string) error {
	res := tx.Table(models.TableFor(ref.Type)).
		Where("id = ? AND version = ?", ref.ID, unit.Version).
		Updates(map[string]any{
			"moderation_status": to,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}

	return tx.Create(&models.ModerationEvent{
		ContentID:   ref.ID,
		ContentType: ref.Type,
		ActorID:     actor,
		FromStatus:  unit.ModerationStatus,
		ToStatus:    to,
		Reason:      reason,
	}).Error
}

// Transition is the explicit moderator path, including reopening terminal
// statuses back to under_review. The moderator must not be the unit's
// author.
func (sm *StateMachine) Transition(ctx context.Context, actorID uint, ref models.ContentRef, to models.ModerationStatus, reason string) error {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		unit, err := content.LookupUnit(ctx, sm.db, ref)
		if err != nil {
			return err
		}
		if unit.AuthorID == actorID {
			sm.log.Warn("self-moderation attempt", "actor", actorID, "ref", ref.String())
			return fmt.Errorf("%w: cannot moderate own content", models.ErrForbidden)
		}
		if unit.ModerationStatus == to {
			return nil
		}
		if !CanTransition(unit.ModerationStatus, to) {
			return fmt.Errorf("%w: no transition %s -> %s", models.ErrConflict, unit.ModerationStatus, to)
		}

		err = sm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return applyTransition(tx, unit, ref, to, &actorID, reason)
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		transitionsApplied.WithLabelValues(string(unit.ModerationStatus), string(to), "manual").Inc()
		sm.events.AddEvent(&events.Event{
			Kind:       events.EvtModerationStatusChanged,
			Ref:        ref,
			UserID:     unit.AuthorID,
			FromStatus: unit.ModerationStatus,
			ToStatus:   to,
			Reason:     reason,
		})
		return nil
	}
	return fmt.Errorf("%w: transition on %s", models.ErrConflict, ref)
}

// EvaluateAutoFlag checks the open-report count for ref and flags the unit
// when the threshold is crossed while it sits in pending or approved. The
// status guard makes the transition fire exactly once per crossing: once
// flagged, further reports find a non-flaggable status and do nothing.
func (sm *StateMachine) EvaluateAutoFlag(ctx context.Context, ref models.ContentRef) error {
	var open int64
	if err := sm.db.WithContext(ctx).Model(&models.Report{}).
		Where("content_id = ? AND content_type = ? AND status = ?", ref.ID, ref.Type, models.ReportStatusPending).
		Count(&open).Error; err != nil {
		return err
	}
	if open < int64(sm.cfg.ReportThreshold) {
		return nil
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		unit, err := content.LookupUnit(ctx, sm.db, ref)
		if err != nil {
			return err
		}
		if unit.ModerationStatus != models.StatusPending && unit.ModerationStatus != models.StatusApproved {
			return nil
		}

		reason := fmt.Sprintf("open report count reached %d", open)
		err = sm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return applyTransition(tx, unit, ref, models.StatusFlagged, nil, reason)
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		autoFlags.Inc()
		transitionsApplied.WithLabelValues(string(unit.ModerationStatus), string(models.StatusFlagged), "auto").Inc()
		sm.events.AddEvent(&events.Event{
			Kind:       events.EvtModerationStatusChanged,
			Ref:        ref,
			UserID:     unit.AuthorID,
			FromStatus: unit.ModerationStatus,
			ToStatus:   models.StatusFlagged,
			Reason:     reason,
		})
		return nil
	}
	return fmt.Errorf("%w: auto-flag on %s", models.ErrConflict, ref)
}

// Decision is a moderator's verdict on a report.
type Decision string

const (
	DecisionApprove = Decision("approve")
	DecisionReject  = Decision("reject")
	DecisionDismiss = Decision("dismiss")
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject, DecisionDismiss:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", models.ErrValidation, s)
	}
}

// ResolveReport closes a report and, for approve/reject, transitions the
// underlying content. Self-review is forbidden in both directions: a
// moderator can resolve neither their own report nor a report against
// their own content.
func (sm *StateMachine) ResolveReport(ctx context.Context, moderatorID uint, reportID uint, decision Decision) (models.ReportStatus, error) {
	var report models.Report
	if err := sm.db.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: report %d", models.ErrNotFound, reportID)
		}
		return "", err
	}
	if !report.Status.Open() {
		return "", fmt.Errorf("%w: report %d already resolved (%s)", models.ErrConflict, reportID, report.Status)
	}
	if report.ReporterID == moderatorID {
		sm.log.Warn("reporter attempted to resolve own report", "moderator", moderatorID, "report", reportID)
		return "", fmt.Errorf("%w: cannot resolve own report", models.ErrForbidden)
	}

	ref := report.Ref()
	unit, err := content.LookupUnit(ctx, sm.db, ref)
	if err != nil {
		return "", err
	}
	if unit.AuthorID == moderatorID {
		sm.log.Warn("author attempted to resolve report on own content", "moderator", moderatorID, "report", reportID)
		return "", fmt.Errorf("%w: cannot resolve a report against own content", models.ErrForbidden)
	}

	var reportStatus models.ReportStatus
	var contentTarget models.ModerationStatus
	switch decision {
	case DecisionApprove:
		reportStatus, contentTarget = models.ReportStatusReviewed, models.StatusApproved
	case DecisionReject:
		reportStatus, contentTarget = models.ReportStatusActionTaken, models.StatusRejected
	case DecisionDismiss:
		reportStatus = models.ReportStatusDismissed
	default:
		return "", fmt.Errorf("%w: unknown decision %q", models.ErrValidation, decision)
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err = sm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			res := tx.Model(&models.Report{}).
				Where("id = ? AND status = ?", reportID, models.ReportStatusPending).
				Updates(map[string]any{
					"status":      reportStatus,
					"reviewed_by": moderatorID,
					"reviewed_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: report %d already resolved", models.ErrConflict, reportID)
			}

			if contentTarget == "" || unit.ModerationStatus == contentTarget {
				return nil
			}
			if !CanTransition(unit.ModerationStatus, contentTarget) {
				// content moved into a state the decision no longer applies
				// to; the report resolution itself still stands
				return nil
			}
			return applyTransition(tx, unit, ref, contentTarget, &moderatorID, fmt.Sprintf("report %d: %s", reportID, decision))
		})
		if errors.Is(err, errVersionConflict) {
			unit, err = content.LookupUnit(ctx, sm.db, ref)
			if err != nil {
				return "", err
			}
			continue
		}
		if err != nil {
			return "", err
		}

		reportsResolved.WithLabelValues(string(decision)).Inc()
		if contentTarget != "" && unit.ModerationStatus != contentTarget {
			sm.events.AddEvent(&events.Event{
				Kind:       events.EvtModerationStatusChanged,
				Ref:        ref,
				UserID:     unit.AuthorID,
				FromStatus: unit.ModerationStatus,
				ToStatus:   contentTarget,
				Reason:     fmt.Sprintf("report %d: %s", reportID, decision),
			})
		}
		sm.events.AddEvent(&events.Event{
			Kind:   events.EvtReportResolved,
			Ref:    ref,
			UserID: unit.AuthorID,
			Reason: string(decision),
		})

		if err := sm.notifman.AddReportResolved(ctx, unit.AuthorID, ref, moderatorID); err != nil {
			sm.log.Error("report resolution notification failed", "report", reportID, "err", err)
		}

		if reportStatus == models.ReportStatusActionTaken {
			sm.rep.Enqueue(unit.AuthorID)
		}
		return reportStatus, nil
	}
	return "", fmt.Errorf("%w: resolving report %d", models.ErrConflict, reportID)
}

// AuditTrail returns the append-only transition history for a unit, oldest
// first.
func (sm *StateMachine) AuditTrail(ctx context.Context, ref models.ContentRef) ([]models.ModerationEvent, error) {
	var out []models.ModerationEvent
	if err := sm.db.WithContext(ctx).
		Where("content_id = ? AND content_type = ?", ref.ID, ref.Type).
		Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
