package site

import (
	"testing"

	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/resources"
)

func newLedger(wood int) *ledger.Ledger {
	l := ledger.New(ledger.WithBaselineCapacity(1000))
	l.Deposit(1, "wood", wood)
	return l
}

func TestNewReservesCosts(t *testing.T) {
	l := newLedger(100)
	s := New(l, Params{Key: "hut", Team: 1, Costs: resources.Costs{{Resource: "Wood", Amount: 30}}, RequiredWork: 5})
	if !s.InitOK() {
		t.Fatalf("expected reservation to succeed")
	}
	if got := l.SiteReservation(1, "hut", "wood"); got != 30 {
		t.Fatalf("site reservation: got %d want 30", got)
	}
	if s.State() != StateAwaitingMaterials {
		t.Fatalf("state: got %s", s.State())
	}
}

func TestFailedSiteIsInert(t *testing.T) {
	l := newLedger(10)
	notified := 0
	s := New(l, Params{Key: "keep", Team: 1, Costs: resources.Costs{{Resource: "wood", Amount: 30}}, RequiredWork: 1})
	s.SetNotifier(func() { notified++ })
	if s.InitOK() || s.State() != StateFailed {
		t.Fatalf("expected failed site: initOK=%v state=%s", s.InitOK(), s.State())
	}
	if got := s.ReceiveDelivery("wood", 10); got != 0 {
		t.Fatalf("failed site accepted delivery: %d", got)
	}
	if s.AddWork(10) {
		t.Fatalf("failed site completed")
	}
	s.Complete()
	if s.Completed() || notified != 0 {
		t.Fatalf("failed site reacted: completed=%v notified=%d", s.Completed(), notified)
	}
	if l.GetReservedTotal(1, "wood") != 0 {
		t.Fatalf("failed site left a reservation")
	}
}

func TestDeliveryClampsToMissing(t *testing.T) {
	l := newLedger(100)
	s := New(l, Params{Key: "s", Team: 1, Costs: resources.Costs{{Resource: "wood", Amount: 10}}})
	notified := 0
	s.SetNotifier(func() { notified++ })

	if got := s.ReceiveDelivery("wood", 4); got != 4 {
		t.Fatalf("first delivery: got %d", got)
	}
	if got := s.GetMissing("wood"); got != 6 {
		t.Fatalf("missing: got %d want 6", got)
	}
	if got := s.ReceiveDelivery("wood", 100); got != 6 {
		t.Fatalf("second delivery: got %d want 6", got)
	}
	if got := s.ReceiveDelivery("wood", 1); got != 0 {
		t.Fatalf("delivery past requirement: got %d", got)
	}
	if got := s.ReceiveDelivery("stone", 1); got != 0 {
		t.Fatalf("delivery of unrequired resource: got %d", got)
	}
	if !s.MaterialsComplete() {
		t.Fatalf("expected materials complete")
	}
	if notified != 2 {
		t.Fatalf("notifications: got %d want 2", notified)
	}
}

func TestWorkOnlyAccumulatesWithMaterials(t *testing.T) {
	l := newLedger(100)
	completions := 0
	s := New(l, Params{
		Key:          "s",
		Team:         1,
		Costs:        resources.Costs{{Resource: "wood", Amount: 10}},
		RequiredWork: 3,
		OnComplete:   func(*Site) { completions++ },
	})
	if s.AddWork(5) || s.Progress() != 0 {
		t.Fatalf("progress accumulated without materials: %d", s.Progress())
	}

	got := l.WithdrawReserved(1, "s", "wood", 10)
	s.ReceiveDelivery("wood", got)
	if s.State() != StateInProgress {
		t.Fatalf("state: got %s", s.State())
	}
	if s.AddWork(2) {
		t.Fatalf("completed too early")
	}
	if !s.AddWork(1) {
		t.Fatalf("expected completion at required work")
	}
	s.Complete()
	s.AddWork(1)
	if completions != 1 {
		t.Fatalf("OnComplete ran %d times", completions)
	}
	if s.State() != StateComplete {
		t.Fatalf("state: got %s", s.State())
	}
	if l.HasReservation(1, "s") || l.GetReservedTotal(1, "wood") != 0 {
		t.Fatalf("reservation not released")
	}
	if l.GetStored(1, "wood") != 90 {
		t.Fatalf("stored: got %d want 90", l.GetStored(1, "wood"))
	}
}

func TestCompleteReleasesUndeliveredReservation(t *testing.T) {
	l := newLedger(100)
	s := New(l, Params{Key: "s", Team: 1, Costs: resources.Costs{{Resource: "wood", Amount: 40}}})
	l.WithdrawReserved(1, "s", "wood", 15)
	s.ReceiveDelivery("wood", 15)
	s.Complete()
	if got := l.GetAvailable(1, "wood"); got != 85 {
		t.Fatalf("available after complete: got %d want 85", got)
	}
}

func TestGeneratedKeyAndBuilders(t *testing.T) {
	s := New(newLedger(0), Params{Team: 1})
	if s.Key() == "" {
		t.Fatalf("expected generated key")
	}
	if !s.InitOK() || !s.MaterialsComplete() {
		t.Fatalf("empty-cost site should reserve and be material complete")
	}
	s.AddBuilder()
	s.AddBuilder()
	s.RemoveBuilder()
	if s.AssignedBuilders() != 1 {
		t.Fatalf("builders: got %d", s.AssignedBuilders())
	}
}
