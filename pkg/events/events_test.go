package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNothing(t *testing.T, sub Subscriber) {
	t.Helper()
	select {
	case e := <-sub:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	all := b.Subscribe(Filter{})
	recipes := b.Subscribe(Filter{Tables: []Table{TableRecipes}})
	alice := b.Subscribe(Filter{UserID: "alice"})
	assert.Equal(t, 3, b.SubscriberCount())

	b.Publish(&Event{Table: TableComments, Op: OpInsert, RecordID: "c1", Audience: []string{"alice"}})

	e := receive(t, all)
	assert.Equal(t, "c1", e.RecordID)
	assert.False(t, e.Timestamp.IsZero())

	e = receive(t, alice)
	assert.Equal(t, TableComments, e.Table)

	assertNothing(t, recipes)

	b.Publish(&Event{Table: TableRecipes, Op: OpInsert, RecordID: "r1"})
	e = receive(t, recipes)
	assert.Equal(t, "r1", e.RecordID)
	receive(t, all)
	assertNothing(t, alice)
}

func TestFilterMatches(t *testing.T) {
	event := &Event{Table: TableMessages, Audience: []string{"bob"}}

	assert.True(t, Filter{}.matches(event))
	assert.True(t, Filter{Tables: []Table{TableMessages, TableRecipes}}.matches(event))
	assert.False(t, Filter{Tables: []Table{TableRecipes}}.matches(event))
	assert.True(t, Filter{Tables: []Table{TableMessages}, UserID: "bob"}.matches(event))
	assert.False(t, Filter{UserID: "carol"}.matches(event))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe(Filter{})
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op

	_, open := <-sub
	require.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe(Filter{})
	for i := 0; i < 120; i++ {
		b.Publish(&Event{Table: TableRecipes, Op: OpUpdate})
	}

	fast := b.Subscribe(Filter{})
	b.Publish(&Event{Table: TableUsers, Op: OpInsert, RecordID: "last"})

	for {
		e := receive(t, fast)
		if e.RecordID == "last" {
			break
		}
	}
	assert.LessOrEqual(t, len(slow), cap(slow))
}

func TestStopWithoutStart(t *testing.T) {
	b := NewBroker()
	b.Stop()
	b.Stop()
}
