package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/notifs"
	"github.com/trilliondigital/Dirt-v1.0-sub007/util/cliutil"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 40)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Vote{}, &models.Report{}))

	em := events.NewEventManager(events.NewMemPersister())
	go em.Run()
	t.Cleanup(em.Shutdown)

	nm, err := notifs.NewNotificationManager(db, em, notifs.DefaultMaxMentions)
	require.NoError(t, err)

	s, err := NewStore(db, nm, em)
	require.NoError(t, err)
	return s, db
}

func TestCreateUser(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(err)
	require.Equal("newcomer", u.Tier)

	got, err := s.GetUserByHandle(ctx, "alice")
	require.NoError(err)
	require.Equal(u.ID, got.ID)

	_, err = s.CreateUser(ctx, "alice", "other@example.com")
	require.ErrorIs(err, models.ErrConflict)

	for _, bad := range []string{"", "has space", "dash-ed", strings.Repeat("x", 33)} {
		_, err = s.CreateUser(ctx, bad, "")
		require.ErrorIs(err, models.ErrValidation, "handle %q", bad)
	}
}

func TestSubmitContent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)

	res, err := s.SubmitContent(ctx, u.ID, SubmitParams{
		Type: models.ContentTypePost,
		Body: "  first post  ",
		Tags: []string{"go", "intro"},
	})
	require.NoError(err)
	require.Equal(models.ContentTypePost, res.Ref.Type)

	unit, err := s.GetContent(ctx, res.Ref)
	require.NoError(err)
	require.Equal("first post", unit.Body)
	require.Equal(models.StatusPending, unit.ModerationStatus)
	require.Equal(u.ID, unit.AuthorID)
	require.Zero(unit.NetScore())
}

func TestSubmitContentValidation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)

	for name, params := range map[string]SubmitParams{
		"empty body":      {Type: models.ContentTypePost, Body: "   "},
		"oversize body":   {Type: models.ContentTypeComment, Body: strings.Repeat("a", MaxCommentBody+1)},
		"too many tags":   {Type: models.ContentTypePost, Body: "x", Tags: make([]string, MaxTags+1)},
		"tag with comma":  {Type: models.ContentTypePost, Body: "x", Tags: []string{"a,b"}},
		"rating too high": {Type: models.ContentTypeReview, Body: "x", Rating: 6},
		"rating missing":  {Type: models.ContentTypeReview, Body: "x"},
		"unknown type":    {Type: models.ContentType("story"), Body: "x"},
	} {
		_, err := s.SubmitContent(ctx, u.ID, params)
		require.ErrorIs(err, models.ErrValidation, name)
	}
}

func TestSubmitContentBannedAuthor(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)
	require.NoError(s.BanUser(ctx, u.ID, "spamming"))

	_, err = s.SubmitContent(ctx, u.ID, SubmitParams{Type: models.ContentTypePost, Body: "hi"})
	require.ErrorIs(err, models.ErrForbidden)
}

func TestSubmitCommentParent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)

	post, err := s.SubmitContent(ctx, u.ID, SubmitParams{Type: models.ContentTypePost, Body: "root"})
	require.NoError(err)

	_, err = s.SubmitContent(ctx, u.ID, SubmitParams{Type: models.ContentTypeComment, Body: "reply", ParentID: post.Ref.ID})
	require.NoError(err)

	_, err = s.SubmitContent(ctx, u.ID, SubmitParams{Type: models.ContentTypeComment, Body: "orphan", ParentID: 999})
	require.ErrorIs(err, models.ErrNotFound)
}

func TestSubmitContentRecordsMentions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, db := testStore(t)

	alice, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)
	_, err = s.CreateUser(ctx, "bob", "")
	require.NoError(err)

	res, err := s.SubmitContent(ctx, alice.ID, SubmitParams{Type: models.ContentTypePost, Body: "cc @bob"})
	require.NoError(err)

	var mentions []models.Mention
	require.NoError(db.Where("content_id = ? AND content_type = ?", res.Ref.ID, res.Ref.Type).Find(&mentions).Error)
	require.Len(mentions, 1)
	require.Equal("bob", mentions[0].Handle)
}

func TestListByScore(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, db := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)

	var refs []models.ContentRef
	for _, body := range []string{"a", "b", "c"} {
		res, err := s.SubmitContent(ctx, u.ID, SubmitParams{Type: models.ContentTypePost, Body: body})
		require.NoError(err)
		refs = append(refs, res.Ref)
	}

	require.NoError(db.Model(&models.Post{}).Where("id = ?", refs[0].ID).Update("upvotes", 5).Error)
	require.NoError(db.Model(&models.Post{}).Where("id = ?", refs[1].ID).Update("downvotes", 2).Error)
	// rejected units never list
	require.NoError(db.Model(&models.Post{}).Where("id = ?", refs[2].ID).Update("moderation_status", models.StatusRejected).Error)

	units, err := s.ListByScore(ctx, models.ContentTypePost, 50, 0)
	require.NoError(err)
	require.Len(units, 2)
	require.Equal(refs[0].ID, units[0].ID)
	require.Equal(refs[1].ID, units[1].ID)
}

func TestDeleteContent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, db := testStore(t)

	alice, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)
	bob, err := s.CreateUser(ctx, "bob", "")
	require.NoError(err)

	res, err := s.SubmitContent(ctx, alice.ID, SubmitParams{Type: models.ContentTypePost, Body: "hi @bob"})
	require.NoError(err)

	require.NoError(db.Create(&models.Vote{UserID: bob.ID, ContentID: res.Ref.ID, ContentType: res.Ref.Type, Dir: models.VoteDirUp}).Error)
	require.NoError(db.Create(&models.Report{ReporterID: bob.ID, ContentID: res.Ref.ID, ContentType: res.Ref.Type, Reason: models.ReportReasonSpam, Status: models.ReportStatusPending}).Error)

	err = s.DeleteContent(ctx, bob.ID, res.Ref)
	require.ErrorIs(err, models.ErrForbidden)

	require.NoError(s.DeleteContent(ctx, alice.ID, res.Ref))

	_, err = s.GetContent(ctx, res.Ref)
	require.ErrorIs(err, models.ErrNotFound)

	for _, m := range []any{&models.Vote{}, &models.Report{}, &models.Mention{}} {
		var count int64
		require.NoError(db.Model(m).Where("content_id = ?", res.Ref.ID).Count(&count).Error)
		require.Zero(count, "%T rows survived deletion", m)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, db := testStore(t)

	alice, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)
	bob, err := s.CreateUser(ctx, "bob", "")
	require.NoError(err)

	res, err := s.SubmitContent(ctx, alice.ID, SubmitParams{Type: models.ContentTypeReview, Body: "solid", Rating: 4})
	require.NoError(err)

	other, err := s.SubmitContent(ctx, bob.ID, SubmitParams{Type: models.ContentTypePost, Body: "unrelated"})
	require.NoError(err)

	require.NoError(db.Create(&models.Vote{UserID: alice.ID, ContentID: other.Ref.ID, ContentType: other.Ref.Type, Dir: models.VoteDirUp}).Error)

	require.NoError(s.DeleteUser(ctx, alice.ID))

	_, err = s.GetUser(ctx, alice.ID)
	require.ErrorIs(err, models.ErrNotFound)
	_, err = s.GetContent(ctx, res.Ref)
	require.ErrorIs(err, models.ErrNotFound)

	// alice's cast votes are gone, bob's content stays
	var votes int64
	require.NoError(db.Model(&models.Vote{}).Where("user_id = ?", alice.ID).Count(&votes).Error)
	require.Zero(votes)
	_, err = s.GetContent(ctx, other.Ref)
	require.NoError(err)
}

func TestSetVerifiedAndBan(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	u, err := s.CreateUser(ctx, "alice", "")
	require.NoError(err)

	require.NoError(s.SetVerified(ctx, u.ID, true))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(err)
	require.True(got.IsVerified)

	require.ErrorIs(s.SetVerified(ctx, 99, true), models.ErrNotFound)
	require.ErrorIs(s.BanUser(ctx, 99, ""), models.ErrNotFound)
}
