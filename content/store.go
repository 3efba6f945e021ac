package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/notifs"
)

// Per-variant body length bounds.
const (
	MaxPostBody    = 10000
	MaxReviewBody  = 5000
	MaxCommentBody = 2000

	MaxTags      = 10
	MaxTagLength = 32
)

// Store is the canonical record of users and content units. Mention
// extraction runs exactly once per created unit, after the row is
// committed; its failure never unwinds the creation.
type Store struct {
	db       *gorm.DB
	notifman *notifs.NotificationManager
	events   *events.EventManager

	log *slog.Logger
}

func NewStore(db *gorm.DB, notifman *notifs.NotificationManager, evtman *events.EventManager) (*Store, error) {
	for _, m := range []any{&models.User{}, &models.Post{}, &models.Review{}, &models.Comment{}} {
		if err := db.AutoMigrate(m); err != nil {
			return nil, err
		}
	}

	return &Store{
		db:       db,
		notifman: notifman,
		events:   evtman,
		log:      slog.Default().With("system", "content"),
	}, nil
}

type SubmitParams struct {
	Type models.ContentType
	Body string
	Tags []string

	// Review only.
	Rating int
	// Comment only; zero means top-level.
	ParentID uint
}

type SubmitResult struct {
	Ref       models.ContentRef
	CreatedAt time.Time
}

func maxBodyFor(t models.ContentType) int {
	switch t {
	case models.ContentTypePost:
		return MaxPostBody
	case models.ContentTypeReview:
		return MaxReviewBody
	default:
		return MaxCommentBody
	}
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("%w: at most %d tags", models.ErrValidation, MaxTags)
	}
	for _, tag := range tags {
		if tag == "" || len(tag) > MaxTagLength {
			return fmt.Errorf("%w: tag length must be 1-%d", models.ErrValidation, MaxTagLength)
		}
		if strings.ContainsAny(tag, ", ") {
			return fmt.Errorf("%w: tag %q contains separator characters", models.ErrValidation, tag)
		}
	}
	return nil
}

// SubmitContent validates and creates a content unit in pending status.
func (s *Store) SubmitContent(ctx context.Context, authorID uint, params SubmitParams) (*SubmitResult, error) {
	body := strings.TrimSpace(params.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: body must not be empty", models.ErrValidation)
	}
	if len(body) > maxBodyFor(params.Type) {
		return nil, fmt.Errorf("%w: body exceeds %d characters", models.ErrValidation, maxBodyFor(params.Type))
	}
	if err := validateTags(params.Tags); err != nil {
		return nil, err
	}

	author, err := s.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author.IsBanned {
		return nil, fmt.Errorf("%w: banned users cannot submit content", models.ErrForbidden)
	}

	tags := strings.Join(dedupeTags(params.Tags), ",")

	var ref models.ContentRef
	switch params.Type {
	case models.ContentTypePost:
		rec := models.Post{AuthorID: authorID, Body: body, Tags: tags}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("creating post: %w", err)
		}
		ref = models.ContentRef{ID: rec.ID, Type: params.Type}
	case models.ContentTypeReview:
		if params.Rating < 1 || params.Rating > 5 {
			return nil, fmt.Errorf("%w: review rating must be 1-5", models.ErrValidation)
		}
		rec := models.Review{AuthorID: authorID, Body: body, Tags: tags, Rating: params.Rating}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("creating review: %w", err)
		}
		ref = models.ContentRef{ID: rec.ID, Type: params.Type}
	case models.ContentTypeComment:
		if params.ParentID != 0 {
			if _, err := LookupUnit(ctx, s.db, models.ContentRef{ID: params.ParentID, Type: models.ContentTypeComment}); err != nil {
				if _, perr := LookupUnit(ctx, s.db, models.ContentRef{ID: params.ParentID, Type: models.ContentTypePost}); perr != nil {
					return nil, fmt.Errorf("%w: comment parent %d", models.ErrNotFound, params.ParentID)
				}
			}
		}
		rec := models.Comment{AuthorID: authorID, ParentID: params.ParentID, Body: body, Tags: tags}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("creating comment: %w", err)
		}
		ref = models.ContentRef{ID: rec.ID, Type: params.Type}
	default:
		return nil, fmt.Errorf("%w: unknown content type %q", models.ErrValidation, params.Type)
	}

	unit, err := LookupUnit(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}

	// mention extraction is a side channel: log and move on if it fails
	if err := s.notifman.ExtractMentions(ctx, ref, authorID, body); err != nil {
		s.log.Error("mention extraction failed", "ref", ref, "err", err)
	}

	s.events.AddEvent(&events.Event{
		Kind:   events.EvtContentCreated,
		Ref:    ref,
		UserID: authorID,
	})

	return &SubmitResult{Ref: ref, CreatedAt: unit.CreatedAt}, nil
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		k := strings.ToLower(tag)
		if !seen[k] {
			seen[k] = true
			out = append(out, tag)
		}
	}
	return out
}

// LookupUnit loads the shared projection of a content unit from its variant
// table. Returns models.ErrNotFound wrapped when no row matches.
func LookupUnit(ctx context.Context, db *gorm.DB, ref models.ContentRef) (*models.ContentUnit, error) {
	table := models.TableFor(ref.Type)
	if table == "" {
		return nil, fmt.Errorf("%w: unknown content type %q", models.ErrValidation, ref.Type)
	}

	var unit models.ContentUnit
	res := db.WithContext(ctx).Table(table).Where("id = ?", ref.ID).Limit(1).Scan(&unit)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || unit.ID == 0 {
		return nil, fmt.Errorf("%w: content %s", models.ErrNotFound, ref)
	}

	return &unit, nil
}

func (s *Store) GetContent(ctx context.Context, ref models.ContentRef) (*models.ContentUnit, error) {
	return LookupUnit(ctx, s.db, ref)
}

// ListByScore returns units of the given type ordered by net score,
// descending. Only approved and pending units are listed.
func (s *Store) ListByScore(ctx context.Context, t models.ContentType, limit, offset int) ([]models.ContentUnit, error) {
	table := models.TableFor(t)
	if table == "" {
		return nil, fmt.Errorf("%w: unknown content type %q", models.ErrValidation, t)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var units []models.ContentUnit
	err := s.db.WithContext(ctx).Table(table).
		Where("moderation_status IN ?", []models.ModerationStatus{models.StatusApproved, models.StatusPending}).
		Order("(upvotes - downvotes) DESC, id DESC").
		Limit(limit).Offset(offset).
		Scan(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// DeleteContent removes a unit and its weak relations (votes, reports,
// mentions). Only the author may delete.
func (s *Store) DeleteContent(ctx context.Context, callerID uint, ref models.ContentRef) error {
	unit, err := LookupUnit(ctx, s.db, ref)
	if err != nil {
		return err
	}
	if unit.AuthorID != callerID {
		return fmt.Errorf("%w: content %s is not owned by user %d", models.ErrForbidden, ref, callerID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return cleanupRef(tx, ref)
	})
}

func cleanupRef(tx *gorm.DB, ref models.ContentRef) error {
	if err := tx.Where("content_id = ? AND content_type = ?", ref.ID, ref.Type).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	if err := tx.Where("content_id = ? AND content_type = ?", ref.ID, ref.Type).Delete(&models.Report{}).Error; err != nil {
		return err
	}
	if err := tx.Where("content_id = ? AND content_type = ?", ref.ID, ref.Type).Delete(&models.Mention{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", ref.ID).Delete(modelFor(ref.Type)).Error
}

func modelFor(t models.ContentType) any {
	switch t {
	case models.ContentTypePost:
		return &models.Post{}
	case models.ContentTypeReview:
		return &models.Review{}
	default:
		return &models.Comment{}
	}
}

// DeleteUser cascade-deletes the user's authored content along with each
// unit's weak relations, then the user row itself. Votes the user cast on
// other content are dropped without rewinding counters; a later recompute
// of those authors re-reads the surviving aggregates.
func (s *Store) DeleteUser(ctx context.Context, userID uint) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range []models.ContentType{models.ContentTypePost, models.ContentTypeReview, models.ContentTypeComment} {
			var ids []uint
			if err := tx.Table(models.TableFor(t)).Where("author_id = ?", userID).Pluck("id", &ids).Error; err != nil {
				return err
			}
			for _, id := range ids {
				if err := cleanupRef(tx, models.ContentRef{ID: id, Type: t}); err != nil {
					return err
				}
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reporter_id = ?", userID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}
