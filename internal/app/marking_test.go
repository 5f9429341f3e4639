package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/powmonk/qubpiz-sub000/internal/app"
)

func TestAssignBuildsSingleCycle(t *testing.T) {
	engine := app.NewMarkingEngineWithRand(rand.New(rand.NewSource(42)))

	for n := 2; n <= 9; n++ {
		members := make([]string, n)
		for i := range members {
			members[i] = fmt.Sprintf("player-%d", i)
		}
		assignments := engine.Assign("ABC123", "r1", members)
		if len(assignments) != n {
			t.Fatalf("n=%d: expected %d assignments, got %d", n, n, len(assignments))
		}

		markers := make(map[string]bool)
		markees := make(map[string]bool)
		for _, a := range assignments {
			if a.MarkerName == a.MarkeeName {
				t.Fatalf("n=%d: self-assignment %+v", n, a)
			}
			if markers[a.MarkerName] {
				t.Fatalf("n=%d: marker %q appears twice", n, a.MarkerName)
			}
			if markees[a.MarkeeName] {
				t.Fatalf("n=%d: markee %q appears twice", n, a.MarkeeName)
			}
			markers[a.MarkerName] = true
			markees[a.MarkeeName] = true
			if a.SessionCode != "ABC123" || a.RoundID != "r1" {
				t.Fatalf("n=%d: assignment misses keys: %+v", n, a)
			}
			if a.ID == "" {
				t.Fatalf("n=%d: assignment without ID", n)
			}
		}
		if len(markers) != n || len(markees) != n {
			t.Fatalf("n=%d: incomplete coverage markers=%d markees=%d", n, len(markers), len(markees))
		}
	}
}

func TestAssignFollowsTheCycle(t *testing.T) {
	engine := app.NewMarkingEngineWithRand(rand.New(rand.NewSource(7)))
	assignments := engine.Assign("ABC123", "r1", []string{"Alice", "Bob", "Cara"})

	// Walking marker -> markee must visit all three before returning home.
	next := make(map[string]string, len(assignments))
	for _, a := range assignments {
		next[a.MarkerName] = a.MarkeeName
	}
	start := assignments[0].MarkerName
	seen := map[string]bool{start: true}
	current := next[start]
	for current != start {
		if seen[current] {
			t.Fatalf("cycle revisits %q before closing", current)
		}
		seen[current] = true
		current = next[current]
	}
	if len(seen) != 3 {
		t.Fatalf("cycle covers %d of 3 members", len(seen))
	}
}

func TestAssignTooFewMembers(t *testing.T) {
	engine := app.NewMarkingEngineWithRand(rand.New(rand.NewSource(1)))
	if got := engine.Assign("ABC123", "r1", []string{"Alice"}); got != nil {
		t.Fatalf("expected no assignments for one member, got %v", got)
	}
	if got := engine.Assign("ABC123", "r1", nil); got != nil {
		t.Fatalf("expected no assignments for zero members, got %v", got)
	}
}
