package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

type Config struct {
	// PerContentCap bounds how much a single unit's net score can move a
	// user's reputation, in either direction.
	PerContentCap int
	// ActionPenalty is subtracted per action_taken report resolved against
	// the user's content.
	ActionPenalty int
	// VerifiedBonus is a fixed amount added for verified users.
	VerifiedBonus int
}

func DefaultConfig() Config {
	return Config{
		PerContentCap: 50,
		ActionPenalty: 15,
		VerifiedBonus: 100,
	}
}

// Engine recomputes user reputation from the complete signal set: votes
// received on authored content, reports resolved with action taken, and
// verification status. Recompute is a full re-aggregation, so repeated runs
// with no new events are idempotent.
//
// Triggers go through Enqueue; a single worker drains them so no caller
// ever blocks on reputation freshness.
type Engine struct {
	db     *gorm.DB
	events *events.EventManager
	cfg    Config

	lk      sync.Mutex
	pending map[uint]bool
	queue   chan uint
	quit    chan struct{}
	done    chan struct{}

	log *slog.Logger
}

func NewEngine(db *gorm.DB, evtman *events.EventManager, cfg Config) (*Engine, error) {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, err
	}

	if cfg.PerContentCap <= 0 {
		cfg = DefaultConfig()
	}

	return &Engine{
		db:      db,
		events:  evtman,
		cfg:     cfg,
		pending: make(map[uint]bool),
		queue:   make(chan uint, 1024),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     slog.Default().With("system", "reputation"),
	}, nil
}

// Run drains the recompute queue. Call in its own goroutine.
func (e *Engine) Run() {
	defer close(e.done)
	for {
		select {
		case uid := <-e.queue:
			e.lk.Lock()
			delete(e.pending, uid)
			e.lk.Unlock()

			if _, _, err := e.Recompute(context.Background(), uid); err != nil {
				if !models.IsNotFound(err) {
					e.log.Error("reputation recompute failed", "user", uid, "err", err)
				}
			}
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) Shutdown() {
	close(e.quit)
	<-e.done
}

// Enqueue schedules a recompute for userID. Duplicate triggers collapse;
// a full queue drops the trigger rather than blocking the caller.
func (e *Engine) Enqueue(userID uint) {
	e.lk.Lock()
	if e.pending[userID] {
		e.lk.Unlock()
		return
	}
	e.pending[userID] = true
	e.lk.Unlock()

	select {
	case e.queue <- userID:
		recomputesQueued.Inc()
	default:
		e.lk.Lock()
		delete(e.pending, userID)
		e.lk.Unlock()
		recomputesDropped.Inc()
		e.log.Warn("recompute queue full, dropping trigger", "user", userID)
	}
}

type contentScore struct {
	Upvotes   int64
	Downvotes int64
}

// Recompute re-derives the user's score and tier from scratch and persists
// them when they changed.
func (e *Engine) Recompute(ctx context.Context, userID uint) (int, string, error) {
	var user models.User
	if err := e.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
		}
		return 0, "", err
	}

	total := 0
	for _, t := range []models.ContentType{models.ContentTypePost, models.ContentTypeReview, models.ContentTypeComment} {
		var rows []contentScore
		if err := e.db.WithContext(ctx).Table(models.TableFor(t)).
			Select("upvotes, downvotes").
			Where("author_id = ?", userID).
			Scan(&rows).Error; err != nil {
			return 0, "", fmt.Errorf("aggregating %s votes: %w", t, err)
		}
		for _, r := range rows {
			net := int(r.Upvotes - r.Downvotes)
			if net > e.cfg.PerContentCap {
				net = e.cfg.PerContentCap
			} else if net < -e.cfg.PerContentCap {
				net = -e.cfg.PerContentCap
			}
			total += net
		}

		var actions int64
		if err := e.db.WithContext(ctx).Model(&models.Report{}).
			Where("content_type = ? AND status = ? AND content_id IN (?)",
				t, models.ReportStatusActionTaken,
				e.db.Table(models.TableFor(t)).Select("id").Where("author_id = ?", userID)).
			Count(&actions).Error; err != nil {
			return 0, "", fmt.Errorf("counting %s report actions: %w", t, err)
		}
		total -= int(actions) * e.cfg.ActionPenalty
	}

	if user.IsVerified {
		total += e.cfg.VerifiedBonus
	}
	if total < 0 {
		total = 0
	}

	tier := TierFor(total)

	if total != user.Reputation || tier != user.Tier {
		if err := e.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"reputation": total,
			"tier":       tier,
		}).Error; err != nil {
			return 0, "", fmt.Errorf("persisting reputation: %w", err)
		}

		e.events.AddEvent(&events.Event{
			Kind:   events.EvtReputationChanged,
			UserID: userID,
			Score:  total,
			Tier:   tier,
		})
	}

	recomputesRun.Inc()
	return total, tier, nil
}

// GetReputation returns the stored score and tier without forcing a
// recompute.
func (e *Engine) GetReputation(ctx context.Context, userID uint) (int, string, error) {
	var user models.User
	if err := e.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
		}
		return 0, "", err
	}
	return user.Reputation, user.Tier, nil
}
