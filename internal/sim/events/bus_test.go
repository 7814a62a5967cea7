package events

import (
	"reflect"
	"testing"
)

func TestDrainDeliversInPublishAndSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	topic := Topic{Entity: EntityNode, Kind: Changed}
	b.Subscribe(topic, func(ev Event) { got = append(got, "h1:"+ev.ID) })
	b.Subscribe(topic, func(ev Event) { got = append(got, "h2:"+ev.ID) })
	b.SubscribeAll(func(ev Event) { got = append(got, "all:"+ev.ID) })

	b.Publish(Event{Topic: topic, ID: "a"})
	b.Publish(Event{Topic: Topic{Entity: EntitySite, Kind: Changed}, ID: "b"})
	b.Publish(Event{Topic: topic, ID: "c"})

	if len(got) != 0 {
		t.Fatalf("handlers ran before Drain: %v", got)
	}
	if n := b.Drain(); n != 3 {
		t.Fatalf("Drain: got %d want 3", n)
	}
	want := []string{"h1:a", "h2:a", "all:a", "all:b", "h1:c", "h2:c", "all:c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestDrainIncludesEventsPublishedByHandlers(t *testing.T) {
	b := NewBus()
	var got []string
	b.SubscribeEntity(EntityNode, func(ev Event) {
		got = append(got, string(ev.Kind))
		if ev.Kind == Changed {
			b.Publish(Event{Topic: Topic{Entity: EntityNode, Kind: Depleted}, ID: ev.ID})
		}
	})
	b.Publish(Event{Topic: Topic{Entity: EntityNode, Kind: Changed}, ID: "n"})
	b.Drain()
	if !reflect.DeepEqual(got, []string{"CHANGED", "DEPLETED"}) {
		t.Fatalf("got %v", got)
	}
	if b.Pending() != 0 {
		t.Fatalf("queue not empty")
	}
}

func TestPublishStampsTick(t *testing.T) {
	b := NewBus()
	b.SetTick(42)
	var tick uint64
	b.SubscribeAll(func(ev Event) { tick = ev.Tick })
	b.Publish(Event{Topic: Topic{Entity: EntitySite, Kind: Registered}})
	b.Drain()
	if tick != 42 {
		t.Fatalf("tick: got %d want 42", tick)
	}
}
