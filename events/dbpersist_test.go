package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/util/cliutil"
)

func TestDbPersistenceRecent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 40)
	require.NoError(err)

	p, err := NewDbPersistence(db)
	require.NoError(err)

	for i := 0; i < 5; i++ {
		require.NoError(p.Persist(ctx, &Event{
			Kind:   EvtModerationStatusChanged,
			Ref:    models.ContentRef{ID: uint(i + 1), Type: models.ContentTypePost},
			Reason: fmt.Sprintf("step %d", i),
		}))
	}

	// oldest first, bounded by limit
	evts, err := p.Recent(ctx, 3)
	require.NoError(err)
	require.Len(evts, 3)
	require.Equal(uint(3), evts[0].Ref.ID)
	require.Equal(uint(5), evts[2].Ref.ID)
}

func TestDbPersistenceFeedsManager(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 40)
	require.NoError(err)

	p, err := NewDbPersistence(db)
	require.NoError(err)

	em := NewEventManager(p)
	go em.Run()
	defer em.Shutdown()

	em.AddEvent(&Event{Kind: EvtReportResolved, UserID: 4, Reason: "dismiss"})

	require.Eventually(func() bool {
		evts, err := p.Recent(ctx, 10)
		return err == nil && len(evts) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
