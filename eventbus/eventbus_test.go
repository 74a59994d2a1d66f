package eventbus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-run/orchestra/eventbus"
)

func TestDispatch_DeliversInOrderPerListener(t *testing.T) {
	bus := eventbus.New()

	var mu sync.Mutex
	var seen []eventbus.Kind
	done := make(chan struct{})

	unsubscribe := bus.Subscribe(func(ev eventbus.Event) {
		mu.Lock()
		seen = append(seen, ev.Kind)
		if len(seen) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	defer unsubscribe()

	bus.Dispatch(eventbus.Event{Kind: eventbus.KindAgentCreated})
	bus.Dispatch(eventbus.Event{Kind: eventbus.KindDelegated})
	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []eventbus.Kind{
		eventbus.KindAgentCreated, eventbus.KindDelegated, eventbus.KindMessage,
	}, seen)
}

func TestDispatch_AssignsIncreasingSeq(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	var seqs []uint64
	done := make(chan struct{})

	unsubscribe := bus.Subscribe(func(ev eventbus.Event) {
		mu.Lock()
		seqs = append(seqs, ev.Seq)
		if len(seqs) == 2 {
			close(done)
		}
		mu.Unlock()
	})
	defer unsubscribe()

	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})
	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})

	<-done
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, 2)
	assert.Less(t, seqs[0], seqs[1])
}

func TestDispatch_PanickingListenerDoesNotStopOthers(t *testing.T) {
	bus := eventbus.New()

	unsub1 := bus.Subscribe(func(ev eventbus.Event) { panic("boom") })
	defer unsub1()

	var mu sync.Mutex
	count := 0
	done := make(chan struct{})
	unsub2 := bus.Subscribe(func(ev eventbus.Event) {
		mu.Lock()
		count++
		if count == 2 {
			close(done)
		}
		mu.Unlock()
	})
	defer unsub2()

	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})
	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second listener stopped receiving events")
	}
}

func TestUnsubscribe_StopsFutureDelivery(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	count := 0

	unsubscribe := bus.Subscribe(func(ev eventbus.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsubscribe()
	assert.Equal(t, 0, bus.ListenerCount())

	bus.Dispatch(eventbus.Event{Kind: eventbus.KindMessage})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}
