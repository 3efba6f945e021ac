package notifs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/events"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/util/cliutil"
)

func testNotifman(t *testing.T) (*NotificationManager, *gorm.DB) {
	t.Helper()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 40)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	em := events.NewEventManager(events.NewMemPersister())
	go em.Run()
	t.Cleanup(em.Shutdown)

	nm, err := NewNotificationManager(db, em, DefaultMaxMentions)
	require.NoError(t, err)
	return nm, db
}

func TestParseHandles(t *testing.T) {
	for _, tc := range []struct {
		body string
		want []string
	}{
		{"hello @alice", []string{"alice"}},
		{"@alice at the start", []string{"alice"}},
		{"@alice and @bob", []string{"alice", "bob"}},
		{"@alice and @alice again", []string{"alice"}},
		{"@Alice and @aLiCe", []string{"Alice"}},
		{"email me at bob@example.com", nil},
		{"double @@alice", nil},
		{"(@alice), @bob!", []string{"alice", "bob"}},
		{"@" + strings.Repeat("x", 33), nil},
		{"no mentions here", nil},
	} {
		assert.Equal(t, tc.want, ParseHandles(tc.body, DefaultMaxMentions), "body: %q", tc.body)
	}
}

func TestParseHandlesCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "@user%d ", i)
	}
	got := ParseHandles(sb.String(), DefaultMaxMentions)
	require.Len(t, got, DefaultMaxMentions)
	require.Equal(t, "user0", got[0])
}

func TestExtractMentions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	nm, db := testNotifman(t)

	require.NoError(db.Create(&models.User{Handle: "author"}).Error)
	require.NoError(db.Create(&models.User{Handle: "bob"}).Error)

	ref := models.ContentRef{ID: 1, Type: models.ContentTypePost}
	require.NoError(nm.ExtractMentions(ctx, ref, 1, "hey @bob and @ghost"))

	mentions, err := nm.GetMentions(ctx, ref)
	require.NoError(err)
	require.Len(mentions, 2)

	require.Equal("bob", mentions[0].Handle)
	require.NotNil(mentions[0].MentionedID)
	require.Equal(uint(2), *mentions[0].MentionedID)
	require.True(mentions[0].Notified)

	// unresolved handle persists without a notification
	require.Equal("ghost", mentions[1].Handle)
	require.Nil(mentions[1].MentionedID)
	require.False(mentions[1].Notified)

	notifs, err := nm.GetNotifications(ctx, 2, 0)
	require.NoError(err)
	require.Len(notifs, 1)
	require.Equal(int64(NotifKindMention), notifs[0].Kind)
	require.Equal(uint(1), notifs[0].Who)
}

func TestExtractMentionsWriteOnce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	nm, db := testNotifman(t)

	require.NoError(db.Create(&models.User{Handle: "author"}).Error)
	require.NoError(db.Create(&models.User{Handle: "bob"}).Error)

	ref := models.ContentRef{ID: 1, Type: models.ContentTypeComment}
	require.NoError(nm.ExtractMentions(ctx, ref, 1, "hi @bob"))
	require.NoError(nm.ExtractMentions(ctx, ref, 1, "hi @bob"))

	mentions, err := nm.GetMentions(ctx, ref)
	require.NoError(err)
	require.Len(mentions, 1)
}

func TestExtractMentionsSelf(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	nm, db := testNotifman(t)

	require.NoError(db.Create(&models.User{Handle: "alice"}).Error)

	ref := models.ContentRef{ID: 1, Type: models.ContentTypePost}
	require.NoError(nm.ExtractMentions(ctx, ref, 1, "note to @alice myself"))

	mentions, err := nm.GetMentions(ctx, ref)
	require.NoError(err)
	require.Len(mentions, 1)
	require.False(mentions[0].Notified)

	notifs, err := nm.GetNotifications(ctx, 1, 0)
	require.NoError(err)
	require.Empty(notifs)
}

func TestSeenCount(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	nm, db := testNotifman(t)

	require.NoError(db.Create(&models.User{Handle: "author"}).Error)
	require.NoError(db.Create(&models.User{Handle: "bob"}).Error)

	ref := models.ContentRef{ID: 1, Type: models.ContentTypePost}
	require.NoError(nm.ExtractMentions(ctx, ref, 1, "ping @bob"))
	require.NoError(nm.AddReportResolved(ctx, 2, ref, 3))

	count, err := nm.GetCount(ctx, 2)
	require.NoError(err)
	require.Equal(int64(2), count)

	require.NoError(nm.UpdateSeen(ctx, 2, time.Now().Add(time.Second)))

	count, err = nm.GetCount(ctx, 2)
	require.NoError(err)
	require.Zero(count)
}
