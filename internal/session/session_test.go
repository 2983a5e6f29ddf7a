package session

import (
	"context"
	"testing"
	"time"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestSession_SubscribeDeliversCurrentSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, NewState(testGame()), nil)
	out := make(chan Snapshot, 8)
	s.Inbox() <- Subscribe{ID: "ui", Outbox: out}

	snap := recvSnapshot(t, out, time.Second)
	if snap.State.Phase != PhaseIdle {
		t.Fatalf("expected idle snapshot, got %v", snap.State.Phase)
	}
}

func TestSession_DispatchBroadcastsAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, NewState(testGame()), nil)
	out := make(chan Snapshot, 8)
	s.Inbox() <- Subscribe{ID: "ui", Outbox: out}
	first := recvSnapshot(t, out, time.Second)

	s.Inbox() <- Dispatch{Event: JoinRequested{}}
	s.Inbox() <- Dispatch{Event: RosterReplaced{Players: []protocol.RosterEntry{{Name: "alice"}}}}

	snap := recvSnapshot(t, out, time.Second)
	if snap.Version != first.Version+1 {
		t.Fatalf("expected version %d, got %d", first.Version+1, snap.Version)
	}
	snap = recvSnapshot(t, out, time.Second)
	if snap.State.Phase != PhaseLobby {
		t.Fatalf("expected lobby, got %v", snap.State.Phase)
	}
	if len(snap.State.Players) != 1 || snap.State.Players[0].Name != "alice" {
		t.Fatalf("unexpected roster: %+v", snap.State.Players)
	}
}

func TestSession_SlowSubscriberDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, NewState(testGame()), nil)
	out := make(chan Snapshot, 1) // initial snapshot fills it up
	s.Inbox() <- Subscribe{ID: "slow", Outbox: out}

	// Two dispatches: the first broadcast may fit nowhere, dropping us.
	s.Inbox() <- Dispatch{Event: JoinRequested{}}
	s.Inbox() <- Dispatch{Event: JoinRequested{}}

	reply := make(chan View, 1)
	s.Inbox() <- GetView{Reply: reply}
	v := recvView(t, reply, time.Second)
	if v.NumSubscribers != 0 {
		t.Fatalf("expected slow subscriber to be dropped, have %d", v.NumSubscribers)
	}
}

func TestSession_ShutdownClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, NewState(testGame()), nil)
	out := make(chan Snapshot, 8)
	s.Inbox() <- Subscribe{ID: "ui", Outbox: out}
	recvSnapshot(t, out, time.Second)

	s.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox, got snapshot")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for outbox close")
	}
}
