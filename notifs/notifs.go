package notifs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

const (
	NotifKindMention        = 1
	NotifKindReportResolved = 2
	NotifKindStatusChanged  = 3
)

type NotifRecord struct {
	ID          uint `gorm:"primarykey"`
	For         uint `gorm:"column:for_id;index;not null"`
	Kind        int64
	ContentID   uint
	ContentType models.ContentType
	Who         uint
	CreatedAt   time.Time
}

type NotifSeen struct {
	ID       uint `gorm:"primarykey"`
	Usr      uint `gorm:"uniqueIndex"`
	LastSeen time.Time
}

// NotificationManager owns mention extraction and the per-user notification
// feed. Handle lookups go through a small LRU since the same handles show
// up in bursts.
type NotificationManager struct {
	db     *gorm.DB
	events *events.EventManager

	maxMentions int
	handleCache *lru.Cache[string, uint]

	log *slog.Logger
}

func NewNotificationManager(db *gorm.DB, evtman *events.EventManager, maxMentions int) (*NotificationManager, error) {
	if err := db.AutoMigrate(&NotifRecord{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&NotifSeen{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Mention{}); err != nil {
		return nil, err
	}

	if maxMentions <= 0 {
		maxMentions = DefaultMaxMentions
	}

	cache, err := lru.New[string, uint](1024)
	if err != nil {
		return nil, err
	}

	return &NotificationManager{
		db:          db,
		events:      evtman,
		maxMentions: maxMentions,
		handleCache: cache,
		log:         slog.Default().With("system", "notifs"),
	}, nil
}

func (nm *NotificationManager) lookupUserByHandle(ctx context.Context, handle string) (uint, bool, error) {
	if id, ok := nm.handleCache.Get(handle); ok {
		return id, true, nil
	}

	var u models.User
	res := nm.db.WithContext(ctx).Where("handle = ?", handle).Limit(1).Find(&u)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if u.ID == 0 {
		return 0, false, nil
	}

	nm.handleCache.Add(handle, u.ID)
	return u.ID, true, nil
}

// ExtractMentions scans body for handle references and records one Mention
// per unique handle, capped. Runs once, at content creation; edits never
// re-extract. Unresolved handles persist without a notification.
func (nm *NotificationManager) ExtractMentions(ctx context.Context, ref models.ContentRef, authorID uint, body string) error {
	handles := ParseHandles(body, nm.maxMentions)

	for _, handle := range handles {
		mention := models.Mention{
			ContentID:   ref.ID,
			ContentType: ref.Type,
			Handle:      handle,
		}

		uid, resolved, err := nm.lookupUserByHandle(ctx, handle)
		if err != nil {
			return fmt.Errorf("resolving handle %q: %w", handle, err)
		}
		if resolved {
			mention.MentionedID = &uid
			mention.Notified = uid != authorID
		}

		// write-once: a re-run for the same unit must not duplicate rows
		if err := nm.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&mention).Error; err != nil {
			return fmt.Errorf("recording mention of %q: %w", handle, err)
		}

		if !resolved || uid == authorID {
			continue
		}

		if err := nm.db.WithContext(ctx).Create(&NotifRecord{
			For:         uid,
			Kind:        NotifKindMention,
			ContentID:   ref.ID,
			ContentType: ref.Type,
			Who:         authorID,
		}).Error; err != nil {
			return fmt.Errorf("creating mention notification: %w", err)
		}
		notificationsCreated.WithLabelValues("mention").Inc()

		nm.events.AddEvent(&events.Event{
			Kind:   events.EvtMentionCreated,
			Ref:    ref,
			UserID: uid,
			Handle: handle,
		})
	}

	return nil
}

// AddReportResolved notifies a content author that a report against their
// unit reached a decision.
func (nm *NotificationManager) AddReportResolved(ctx context.Context, authorID uint, ref models.ContentRef, moderatorID uint) error {
	if err := nm.db.WithContext(ctx).Create(&NotifRecord{
		For:         authorID,
		Kind:        NotifKindReportResolved,
		ContentID:   ref.ID,
		ContentType: ref.Type,
		Who:         moderatorID,
	}).Error; err != nil {
		return err
	}
	notificationsCreated.WithLabelValues("report_resolved").Inc()
	return nil
}

func (nm *NotificationManager) GetNotifications(ctx context.Context, user uint, limit int) ([]NotifRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var notifs []NotifRecord
	if err := nm.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&notifs, "for_id = ?", user).Error; err != nil {
		return nil, err
	}
	return notifs, nil
}

func (nm *NotificationManager) GetCount(ctx context.Context, user uint) (int64, error) {
	var lseen time.Time
	if err := nm.db.WithContext(ctx).Model(NotifSeen{}).Where("usr = ?", user).Select("last_seen").Scan(&lseen).Error; err != nil {
		return 0, err
	}

	var c int64
	if err := nm.db.WithContext(ctx).Model(NotifRecord{}).Where("for_id = ? AND created_at > ?", user, lseen).Count(&c).Error; err != nil {
		return 0, err
	}

	return c, nil
}

func (nm *NotificationManager) UpdateSeen(ctx context.Context, usr uint, seen time.Time) error {
	return nm.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usr"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(&NotifSeen{
		Usr:      usr,
		LastSeen: seen,
	}).Error
}

// GetMentions lists the recorded mentions for a content unit, resolved or
// not.
func (nm *NotificationManager) GetMentions(ctx context.Context, ref models.ContentRef) ([]models.Mention, error) {
	var out []models.Mention
	if err := nm.db.WithContext(ctx).Where("content_id = ? AND content_type = ?", ref.ID, ref.Type).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
