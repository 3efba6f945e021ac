package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

func TestEventFanout(t *testing.T) {
	assert := assert.New(t)

	em := NewEventManager(NewMemPersister())
	go em.Run()
	defer em.Shutdown()

	all := em.Subscribe(nil, 8)
	repOnly := em.Subscribe(func(evt *Event) bool {
		return evt.Kind == EvtReputationChanged
	}, 8)

	em.AddEvent(&Event{Kind: EvtContentCreated, Ref: models.ContentRef{ID: 1, Type: models.ContentTypePost}})
	em.AddEvent(&Event{Kind: EvtReputationChanged, UserID: 7, Score: 120, Tier: "contributor"})

	got := readEvent(t, all)
	assert.Equal(EvtContentCreated, got.Kind)
	got = readEvent(t, all)
	assert.Equal(EvtReputationChanged, got.Kind)

	got = readEvent(t, repOnly)
	assert.Equal(EvtReputationChanged, got.Kind)
	assert.Equal(uint(7), got.UserID)

	select {
	case evt := <-repOnly.Next():
		t.Fatalf("unexpected extra event: %v", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func readEvent(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case evt := <-sub.Next():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	assert := assert.New(t)

	em := NewEventManager(NewMemPersister())
	go em.Run()
	defer em.Shutdown()

	sub := em.Subscribe(nil, 4)
	em.Unsubscribe(sub)

	em.AddEvent(&Event{Kind: EvtContentCreated})

	select {
	case evt := <-sub.Next():
		t.Fatalf("unexpected event after unsubscribe: %v", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(true)
}

func TestMemPersisterRecent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mp := NewMemPersister()
	for i := 0; i < 5; i++ {
		assert.NoError(mp.Persist(ctx, &Event{Kind: EvtContentCreated, UserID: uint(i)}))
	}

	recent, err := mp.Recent(ctx, 2)
	assert.NoError(err)
	assert.Len(recent, 2)
	assert.Equal(uint(3), recent[0].UserID)
	assert.Equal(uint(4), recent[1].UserID)

	all, err := mp.Recent(ctx, 0)
	assert.NoError(err)
	assert.Len(all, 5)
}
