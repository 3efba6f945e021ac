package votes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reputation"
	"github.com/trilliondigital/Dirt-v1.0-sub007/util/cliutil"
)

func testLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 40)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Review{}, &models.Comment{}, &models.Report{}))

	em := events.NewEventManager(events.NewMemPersister())
	go em.Run()
	t.Cleanup(em.Shutdown)

	rep, err := reputation.NewEngine(db, em, reputation.DefaultConfig())
	require.NoError(t, err)

	ledger, err := NewLedger(db, rep)
	require.NoError(t, err)
	return ledger, db
}

func seedPost(t *testing.T, db *gorm.DB) models.ContentRef {
	t.Helper()
	require.NoError(t, db.Create(&models.User{Handle: "author"}).Error)
	post := models.Post{AuthorID: 1, Body: "hello"}
	require.NoError(t, db.Create(&post).Error)
	return models.ContentRef{ID: post.ID, Type: models.ContentTypePost}
}

func TestCastVote(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	net, err := ledger.CastVote(ctx, 2, ref, models.VoteDirUp)
	require.NoError(err)
	require.Equal(int64(1), net)

	dir, err := ledger.GetVote(ctx, 2, ref)
	require.NoError(err)
	require.Equal(models.VoteDirUp, dir)

	var post models.Post
	require.NoError(db.First(&post, ref.ID).Error)
	require.Equal(int64(1), post.Upvotes)
	require.Equal(int64(0), post.Downvotes)
}

func TestCastVoteIdempotent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	for i := 0; i < 3; i++ {
		net, err := ledger.CastVote(ctx, 2, ref, models.VoteDirUp)
		require.NoError(err)
		require.Equal(int64(1), net)
	}

	var post models.Post
	require.NoError(db.First(&post, ref.ID).Error)
	require.Equal(int64(1), post.Upvotes)

	var count int64
	require.NoError(db.Model(&models.Vote{}).Count(&count).Error)
	require.Equal(int64(1), count)
}

func TestSwitchDirection(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	_, err := ledger.CastVote(ctx, 2, ref, models.VoteDirUp)
	require.NoError(err)

	// flipping up to down moves the net by two in one step
	net, err := ledger.CastVote(ctx, 2, ref, models.VoteDirDown)
	require.NoError(err)
	require.Equal(int64(-1), net)

	var post models.Post
	require.NoError(db.First(&post, ref.ID).Error)
	require.Equal(int64(0), post.Upvotes)
	require.Equal(int64(1), post.Downvotes)
}

func TestRetraction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	_, err := ledger.CastVote(ctx, 2, ref, models.VoteDirDown)
	require.NoError(err)

	net, err := ledger.CastVote(ctx, 2, ref, models.VoteDirNone)
	require.NoError(err)
	require.Equal(int64(0), net)

	var post models.Post
	require.NoError(db.First(&post, ref.ID).Error)
	require.Equal(int64(0), post.Upvotes)
	require.Equal(int64(0), post.Downvotes)

	dir, err := ledger.GetVote(ctx, 2, ref)
	require.NoError(err)
	require.Equal(models.VoteDirNone, dir)
}

func TestDistinctVoters(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	for uid := uint(2); uid <= 4; uid++ {
		_, err := ledger.CastVote(ctx, uid, ref, models.VoteDirDown)
		require.NoError(err)
	}

	net, err := ledger.NetScore(ctx, ref)
	require.NoError(err)
	require.Equal(int64(-3), net)
}

func TestVoteUnknownContent(t *testing.T) {
	require := require.New(t)
	ledger, _ := testLedger(t)

	ref := models.ContentRef{ID: 42, Type: models.ContentTypePost}
	_, err := ledger.CastVote(context.Background(), 2, ref, models.VoteDirUp)
	require.ErrorIs(err, models.ErrNotFound)
}

func TestVersionBumpsOnChange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ledger, db := testLedger(t)
	ref := seedPost(t, db)

	_, err := ledger.CastVote(ctx, 2, ref, models.VoteDirUp)
	require.NoError(err)
	_, err = ledger.CastVote(ctx, 2, ref, models.VoteDirUp)
	require.NoError(err)
	_, err = ledger.CastVote(ctx, 2, ref, models.VoteDirDown)
	require.NoError(err)

	var post models.Post
	require.NoError(db.First(&post, ref.ID).Error)
	// two effective changes, one no-op
	require.Equal(int64(2), post.Version)
}
