package reports

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/content"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/moderation"
)

// Intake captures user reports and feeds the moderation state machine.
type Intake struct {
	db *gorm.DB
	sm *moderation.StateMachine

	log *slog.Logger
}

func NewIntake(db *gorm.DB, sm *moderation.StateMachine) (*Intake, error) {
	if err := db.AutoMigrate(&models.Report{}); err != nil {
		return nil, err
	}

	return &Intake{
		db:  db,
		sm:  sm,
		log: slog.Default().With("system", "reports"),
	}, nil
}

// SubmitReport records a report against a content unit. Idempotent per
// reporter and content: while the reporter already has an open report on
// the unit, another submission updates that report's context instead of
// inserting a duplicate. A successful insert or update re-evaluates the
// automatic flag threshold.
func (in *Intake) SubmitReport(ctx context.Context, reporterID uint, ref models.ContentRef, reason models.ReportReason, reportCtx string) (*models.Report, error) {
	if _, err := models.ParseReportReason(string(reason)); err != nil {
		return nil, err
	}

	unit, err := content.LookupUnit(ctx, in.db, ref)
	if err != nil {
		return nil, err
	}
	if unit.AuthorID == reporterID {
		return nil, fmt.Errorf("%w: cannot report own content", models.ErrForbidden)
	}

	var report models.Report
	err = in.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Report
		if ferr := tx.Where("reporter_id = ? AND content_id = ? AND content_type = ? AND status = ?",
			reporterID, ref.ID, ref.Type, models.ReportStatusPending).
			Limit(1).Find(&existing).Error; ferr != nil {
			return ferr
		}

		if existing.ID != 0 {
			duplicateReports.Inc()
			if uerr := tx.Model(&existing).Update("context", reportCtx).Error; uerr != nil {
				return uerr
			}
			existing.Context = reportCtx
			report = existing
			return nil
		}

		report = models.Report{
			ReporterID:  reporterID,
			ContentID:   ref.ID,
			ContentType: ref.Type,
			Reason:      reason,
			Context:     reportCtx,
			Status:      models.ReportStatusPending,
		}
		if cerr := tx.Create(&report).Error; cerr != nil {
			return cerr
		}
		reportsReceived.WithLabelValues(string(reason)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// threshold evaluation is internally serialized; a conflict here means
	// someone else already moved the status, which is fine
	if err := in.sm.EvaluateAutoFlag(ctx, ref); err != nil {
		in.log.Error("auto-flag evaluation failed", "ref", ref.String(), "err", err)
	}

	return &report, nil
}

// QueryModerationQueue pages through reports newest-first. page starts at
// 1; re-running the same page is always valid, so consumers can restart
// mid-scan.
func (in *Intake) QueryModerationQueue(ctx context.Context, page, pageSize int, statusFilter *models.ReportStatus) ([]models.Report, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}

	q := in.db.WithContext(ctx).Model(&models.Report{})
	if statusFilter != nil {
		q = q.Where("status = ?", *statusFilter)
	}

	var out []models.Report
	if err := q.Order("created_at desc, id desc").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetReport loads a single report.
func (in *Intake) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	res := in.db.WithContext(ctx).Limit(1).Find(&report, "id = ?", id)
	if res.Error != nil {
		return nil, res.Error
	}
	if report.ID == 0 {
		return nil, fmt.Errorf("%w: report %d", models.ErrNotFound, id)
	}
	return &report, nil
}
