// Package reconcile holds the pure decision function that maps a polled
// status snapshot to a client navigation decision. It is deliberately free of
// I/O and timers so the sync protocol can be tested without a UI harness; the
// effectful navigation step lives with the caller (see internal/client).
package reconcile

import (
	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// Screen identifies where a client currently is.
type Screen string

const (
	// ScreenJoin is the entry screen where a player picks a session and name.
	ScreenJoin Screen = "join"
	// ScreenLobby is the in-session holding screen with no round on display.
	ScreenLobby Screen = "lobby"
	// ScreenRound is any active round screen; Location.RoundType says which.
	ScreenRound Screen = "round"
	// ScreenMarking is the peer-marking screen.
	ScreenMarking Screen = "marking"
)

// Location is a client position: a screen, plus the round type when on a
// round screen.
type Location struct {
	Screen    Screen
	RoundType domain.RoundType
}

// ClientState is what the client knows about itself between polls.
type ClientState struct {
	// Joined reports whether the client holds a member identity.
	Joined   bool
	Location Location
}

// Decision is the outcome of reconciling one snapshot. A zero Decision means
// stay put.
type Decision struct {
	Navigate      bool
	Target        Location
	ClearIdentity bool
}

// Decide maps (client state, snapshot) to a navigation decision using a
// strict rule priority. It is idempotent: feeding the state that results from
// applying a decision back in with the same snapshot yields a stay-put
// decision. The session owner's client must not call this at all; the MC
// never auto-navigates.
//
// A session that has gone away (expired or ended) should be reconciled as a
// closed snapshot; see SnapshotGone.
func Decide(state ClientState, snap domain.StatusSnapshot) Decision {
	// An ended or not-yet-open session boots joined players back to the join
	// screen and clears their identity.
	if snap.Status != domain.StatusActive {
		if !state.Joined {
			return Decision{}
		}
		d := Decision{ClearIdentity: true}
		if state.Location.Screen != ScreenJoin {
			d.Navigate = true
			d.Target = Location{Screen: ScreenJoin}
		}
		return d
	}

	if snap.MarkingEnabled {
		if state.Location.Screen == ScreenMarking {
			return Decision{}
		}
		return Decision{Navigate: true, Target: Location{Screen: ScreenMarking}}
	}

	// Leaving marking mode resumes wherever the round pointer sits.
	if state.Location.Screen == ScreenMarking {
		if snap.CurrentRoundID != "" {
			return Decision{Navigate: true, Target: Location{Screen: ScreenRound, RoundType: snap.CurrentRoundType}}
		}
		return Decision{Navigate: true, Target: Location{Screen: ScreenLobby}}
	}

	if snap.CurrentRoundID != "" {
		// Round type changed while on a round screen: go straight there,
		// never bounce through the lobby.
		if state.Location.Screen == ScreenRound && state.Location.RoundType != snap.CurrentRoundType {
			return Decision{Navigate: true, Target: Location{Screen: ScreenRound, RoundType: snap.CurrentRoundType}}
		}
		if state.Location.Screen == ScreenLobby {
			return Decision{Navigate: true, Target: Location{Screen: ScreenRound, RoundType: snap.CurrentRoundType}}
		}
	}

	// In particular: the round pointer going empty mid-round does NOT force a
	// bounce to the lobby. Only close/waiting does, to tolerate the brief gap
	// while the MC switches rounds.
	return Decision{}
}

// Apply folds a decision back into client state, for callers that track their
// position between polls.
func Apply(state ClientState, d Decision) ClientState {
	if d.ClearIdentity {
		state.Joined = false
	}
	if d.Navigate {
		state.Location = d.Target
	}
	return state
}

// SnapshotGone is the snapshot callers should reconcile against when the
// session no longer exists: indistinguishable from an explicit close.
func SnapshotGone() domain.StatusSnapshot {
	return domain.StatusSnapshot{Status: domain.StatusClosed}
}
