package eventmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overflowMarker = -1

func newTestMux(backlog int) *Mux[int] {
	return New(backlog, func() int { return overflowMarker })
}

func drain(sub *Subscription[int]) []int {
	var got []int
	for {
		select {
		case v, ok := <-sub.Events():
			if !ok {
				return got
			}
			got = append(got, v)
		default:
			return got
		}
	}
}

func TestBroadcast_AllSubscribersSeeAllEvents(t *testing.T) {
	m := newTestMux(16)
	a := m.Subscribe()
	b := m.Subscribe()
	require.NotNil(t, a)
	require.NotNil(t, b)

	for i := 1; i <= 5; i++ {
		m.Publish(i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, drain(a))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, drain(b))
}

func TestSubscribe_ReceivesOnlyFromSubscriptionPoint(t *testing.T) {
	m := newTestMux(16)
	m.Publish(1)

	sub := m.Subscribe()
	m.Publish(2)
	m.Publish(3)

	assert.Equal(t, []int{2, 3}, drain(sub))
}

func TestOverflow_DeliversSingleMarker(t *testing.T) {
	m := newTestMux(2)
	sub := m.Subscribe()

	// Backlog of 2: events 3..6 do not fit.
	for i := 1; i <= 6; i++ {
		m.Publish(i)
	}

	got := drain(sub)
	assert.Equal(t, []int{1, 2}, got, "only the buffered prefix is delivered before draining")

	// After the consumer drains, the next publish first delivers exactly
	// one overflow marker, then resumes normal delivery.
	m.Publish(7)
	m.Publish(8)
	assert.Equal(t, []int{overflowMarker, 8}, drain(sub),
		"the event published while the marker was owed is part of the loss")
}

func TestOverflow_OtherSubscribersUnaffected(t *testing.T) {
	m := newTestMux(2)
	slow := m.Subscribe()
	fast := m.Subscribe()

	var fastGot []int
	for i := 1; i <= 6; i++ {
		m.Publish(i)
		fastGot = append(fastGot, drain(fast)...)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, fastGot)
	assert.Equal(t, []int{1, 2}, drain(slow))
}

func TestCancel_ClosesChannel(t *testing.T) {
	m := newTestMux(4)
	sub := m.Subscribe()
	assert.Equal(t, 1, m.Len())

	sub.Cancel()
	sub.Cancel() // idempotent

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	// Publishing after cancel must not panic.
	m.Publish(1)
}

func TestClose_EndsAllStreams(t *testing.T) {
	m := newTestMux(4)
	a := m.Subscribe()
	b := m.Subscribe()

	m.Publish(1)
	m.Close()

	// Buffered events remain readable, then the channel reports closure.
	v, ok := <-a.Events()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = <-a.Events()
	assert.False(t, ok)

	<-b.Events()
	_, ok = <-b.Events()
	assert.False(t, ok)

	assert.Nil(t, m.Subscribe(), "subscribe after close")
	m.Publish(2) // no-op
	m.Close()    // idempotent
}
