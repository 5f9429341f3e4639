package reconcile

import (
	"testing"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

func TestWaitingBootsJoinedClients(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenLobby}}
	snap := domain.StatusSnapshot{Status: domain.StatusWaiting}

	d := Decide(state, snap)
	if !d.ClearIdentity || !d.Navigate || d.Target.Screen != ScreenJoin {
		t.Fatalf("expected boot to join screen, got %+v", d)
	}

	// A client that never joined just stays on the join screen.
	d = Decide(ClientState{Location: Location{Screen: ScreenJoin}}, snap)
	if d.Navigate || d.ClearIdentity {
		t.Fatalf("expected no-op for unjoined client, got %+v", d)
	}
}

func TestClosedBootsLikeWaiting(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundText}}
	d := Decide(state, SnapshotGone())
	if !d.ClearIdentity || !d.Navigate || d.Target.Screen != ScreenJoin {
		t.Fatalf("expected boot to join screen on close, got %+v", d)
	}
}

func TestMarkingWinsOverRound(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundText}}
	snap := domain.StatusSnapshot{
		Status:           domain.StatusActive,
		CurrentRoundID:   "r1",
		CurrentRoundType: domain.RoundText,
		MarkingEnabled:   true,
	}

	d := Decide(state, snap)
	if !d.Navigate || d.Target.Screen != ScreenMarking {
		t.Fatalf("expected marking screen, got %+v", d)
	}

	// Already there: no-op.
	d = Decide(ClientState{Joined: true, Location: Location{Screen: ScreenMarking}}, snap)
	if d.Navigate {
		t.Fatalf("expected no-op on marking screen, got %+v", d)
	}
}

func TestLeavingMarkingResumesRound(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenMarking}}

	d := Decide(state, domain.StatusSnapshot{
		Status:           domain.StatusActive,
		CurrentRoundID:   "r2",
		CurrentRoundType: domain.RoundPicture,
	})
	if !d.Navigate || d.Target.Screen != ScreenRound || d.Target.RoundType != domain.RoundPicture {
		t.Fatalf("expected resume to picture round, got %+v", d)
	}

	d = Decide(state, domain.StatusSnapshot{Status: domain.StatusActive})
	if !d.Navigate || d.Target.Screen != ScreenLobby {
		t.Fatalf("expected resume to lobby with no round, got %+v", d)
	}
}

func TestRoundTypeChangeSkipsLobby(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundText}}
	snap := domain.StatusSnapshot{
		Status:           domain.StatusActive,
		CurrentRoundID:   "r2",
		CurrentRoundType: domain.RoundPicture,
	}

	d := Decide(state, snap)
	if !d.Navigate || d.Target.Screen != ScreenRound || d.Target.RoundType != domain.RoundPicture {
		t.Fatalf("expected direct hop to picture round, got %+v", d)
	}
}

func TestLobbyMovesToRound(t *testing.T) {
	state := ClientState{Joined: true, Location: Location{Screen: ScreenLobby}}
	snap := domain.StatusSnapshot{
		Status:           domain.StatusActive,
		CurrentRoundID:   "r1",
		CurrentRoundType: domain.RoundText,
	}

	d := Decide(state, snap)
	if !d.Navigate || d.Target.Screen != ScreenRound || d.Target.RoundType != domain.RoundText {
		t.Fatalf("expected lobby -> round, got %+v", d)
	}
}

func TestRoundClearedDoesNotBounce(t *testing.T) {
	// The MC flipping between rounds leaves a brief gap with no current
	// round; players mid-round must stay put.
	state := ClientState{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundText}}
	snap := domain.StatusSnapshot{Status: domain.StatusActive}

	d := Decide(state, snap)
	if d.Navigate || d.ClearIdentity {
		t.Fatalf("expected stay-put on round clear, got %+v", d)
	}
}

func TestDecideIsIdempotent(t *testing.T) {
	snaps := []domain.StatusSnapshot{
		{Status: domain.StatusWaiting},
		{Status: domain.StatusClosed},
		{Status: domain.StatusActive, MarkingEnabled: true},
		{Status: domain.StatusActive, CurrentRoundID: "r1", CurrentRoundType: domain.RoundText},
		{Status: domain.StatusActive},
	}
	starts := []ClientState{
		{Joined: true, Location: Location{Screen: ScreenJoin}},
		{Joined: true, Location: Location{Screen: ScreenLobby}},
		{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundText}},
		{Joined: true, Location: Location{Screen: ScreenRound, RoundType: domain.RoundPicture}},
		{Joined: true, Location: Location{Screen: ScreenMarking}},
	}

	for _, snap := range snaps {
		for _, start := range starts {
			first := Decide(start, snap)
			next := Apply(start, first)
			second := Decide(next, snap)
			if second.Navigate || second.ClearIdentity {
				t.Fatalf("second application not a no-op: start=%+v snap=%+v first=%+v second=%+v",
					start, snap, first, second)
			}
		}
	}
}
