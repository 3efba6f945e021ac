package events

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

// EventLog is the durable form of a published event.
type EventLog struct {
	ID          uint      `gorm:"primarykey"`
	Kind        EventKind `gorm:"not null;index"`
	ContentID   uint
	ContentType models.ContentType
	UserID      uint
	FromStatus  models.ModerationStatus
	ToStatus    models.ModerationStatus
	Reason      string
	Score       int
	Tier        string
	Handle      string
	CreatedAt   time.Time `gorm:"not null"`
}

type DbPersistence struct {
	db *gorm.DB
}

func NewDbPersistence(db *gorm.DB) (*DbPersistence, error) {
	if err := db.AutoMigrate(&EventLog{}); err != nil {
		return nil, err
	}
	return &DbPersistence{db: db}, nil
}

func (p *DbPersistence) Persist(ctx context.Context, evt *Event) error {
	rec := EventLog{
		Kind:        evt.Kind,
		ContentID:   evt.Ref.ID,
		ContentType: evt.Ref.Type,
		UserID:      evt.UserID,
		FromStatus:  evt.FromStatus,
		ToStatus:    evt.ToStatus,
		Reason:      evt.Reason,
		Score:       evt.Score,
		Tier:        evt.Tier,
		Handle:      evt.Handle,
		CreatedAt:   evt.Time,
	}
	return p.db.WithContext(ctx).Create(&rec).Error
}

func (p *DbPersistence) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []EventLog
	if err := p.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Event, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, &Event{
			Kind:       r.Kind,
			Time:       r.CreatedAt,
			Ref:        models.ContentRef{ID: r.ContentID, Type: r.ContentType},
			UserID:     r.UserID,
			FromStatus: r.FromStatus,
			ToStatus:   r.ToStatus,
			Reason:     r.Reason,
			Score:      r.Score,
			Tier:       r.Tier,
			Handle:     r.Handle,
		})
	}
	return out, nil
}
