package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/content"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reputation"
)

// maxCASRetries bounds internal retries when the content row's version
// moved under us before surfacing ErrConflict.
const maxCASRetries = 3

var errVersionConflict = errors.New("content version moved")

// Ledger holds one vote per (user, content) and keeps the content counter
// pair in sync with it. The ledger row and the counter delta commit in the
// same transaction; the counter update is guarded by the row version so
// concurrent casts against the same unit serialize instead of losing
// updates.
type Ledger struct {
	db  *gorm.DB
	rep *reputation.Engine

	log *slog.Logger
}

func NewLedger(db *gorm.DB, rep *reputation.Engine) (*Ledger, error) {
	if err := db.AutoMigrate(&models.Vote{}); err != nil {
		return nil, err
	}

	return &Ledger{
		db:  db,
		rep: rep,
		log: slog.Default().With("system", "votes"),
	}, nil
}

// counterDelta returns the (upvotes, downvotes) adjustment for a prev→next
// transition. A retraction reverses exactly what the previous direction
// applied, so counters never go negative.
func counterDelta(prev, next models.VoteDir) (int, int) {
	var du, dd int
	switch prev {
	case models.VoteDirUp:
		du--
	case models.VoteDirDown:
		dd--
	}
	switch next {
	case models.VoteDirUp:
		du++
	case models.VoteDirDown:
		dd++
	}
	return du, dd
}

// CastVote upserts the caller's vote on ref and applies the counter delta
// atomically, returning the resulting net score. Casting the same direction
// twice is a no-op.
func (l *Ledger) CastVote(ctx context.Context, userID uint, ref models.ContentRef, dir models.VoteDir) (int64, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		net, authorID, changed, err := l.tryCastVote(ctx, userID, ref, dir)
		if errors.Is(err, errVersionConflict) {
			casConflicts.Inc()
			continue
		}
		if err != nil {
			return 0, err
		}

		if changed {
			votesCast.WithLabelValues(string(dir)).Inc()
			// author reputation catches up asynchronously
			l.rep.Enqueue(authorID)
		}
		return net, nil
	}

	return 0, fmt.Errorf("%w: vote on %s", models.ErrConflict, ref)
}

func (l *Ledger) tryCastVote(ctx context.Context, userID uint, ref models.ContentRef, dir models.VoteDir) (net int64, authorID uint, changed bool, err error) {
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, lerr := content.LookupUnit(ctx, tx, ref)
		if lerr != nil {
			return lerr
		}
		authorID = unit.AuthorID

		var existing models.Vote
		if ferr := tx.Where("user_id = ? AND content_id = ? AND content_type = ?", userID, ref.ID, ref.Type).
			Limit(1).Find(&existing).Error; ferr != nil {
			return ferr
		}

		prev := models.VoteDirNone
		if existing.ID != 0 {
			prev = existing.Dir
		}

		if prev == dir {
			// idempotent re-cast
			net = unit.NetScore()
			return nil
		}

		du, dd := counterDelta(prev, dir)
		res := tx.Table(models.TableFor(ref.Type)).
			Where("id = ? AND version = ?", ref.ID, unit.Version).
			Updates(map[string]any{
				"upvotes":    gorm.Expr("upvotes + ?", du),
				"downvotes":  gorm.Expr("downvotes + ?", dd),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}

		if existing.ID != 0 {
			if uerr := tx.Model(&existing).Update("dir", dir).Error; uerr != nil {
				return uerr
			}
		} else {
			vote := models.Vote{
				UserID:      userID,
				ContentID:   ref.ID,
				ContentType: ref.Type,
				Dir:         dir,
			}
			if cerr := tx.Create(&vote).Error; cerr != nil {
				if errors.Is(cerr, gorm.ErrDuplicatedKey) {
					// lost a race with ourselves on another connection
					return errVersionConflict
				}
				return cerr
			}
		}

		net = unit.NetScore() + int64(du) - int64(dd)
		changed = true
		return nil
	})
	return net, authorID, changed, err
}

// GetVote returns the caller's current direction on ref, VoteDirNone when
// no ledger row exists.
func (l *Ledger) GetVote(ctx context.Context, userID uint, ref models.ContentRef) (models.VoteDir, error) {
	var vote models.Vote
	res := l.db.WithContext(ctx).Where("user_id = ? AND content_id = ? AND content_type = ?", userID, ref.ID, ref.Type).
		Limit(1).Find(&vote)
	if res.Error != nil {
		return "", res.Error
	}
	if vote.ID == 0 {
		return models.VoteDirNone, nil
	}
	return vote.Dir, nil
}

// NetScore reads the current counter pair for ref.
func (l *Ledger) NetScore(ctx context.Context, ref models.ContentRef) (int64, error) {
	unit, err := content.LookupUnit(ctx, l.db, ref)
	if err != nil {
		return 0, err
	}
	return unit.NetScore(), nil
}
