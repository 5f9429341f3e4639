package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// MarkingEngine produces peer-marking assignments: membership is shuffled and
// consecutive members are chained into a single cycle, so member i marks
// member (i+1) mod N. For N >= 2 that guarantees no self-assignment and that
// every member appears exactly once as marker and once as markee.
type MarkingEngine struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMarkingEngine seeds the engine from the wall clock.
func NewMarkingEngine() *MarkingEngine {
	return NewMarkingEngineWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewMarkingEngineWithRand allows a deterministic shuffle in tests.
func NewMarkingEngineWithRand(rnd *rand.Rand) *MarkingEngine {
	return &MarkingEngine{rnd: rnd}
}

// Assign builds the cycle over the given members for one round. Fewer than two
// members cannot be paired; the engine returns an empty set and leaves the
// soft insufficient-players signal to the caller.
func (e *MarkingEngine) Assign(sessionCode, roundID string, members []string) []domain.Assignment {
	if len(members) < 2 {
		return nil
	}

	e.mu.Lock()
	shuffled := append([]string(nil), members...)
	e.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	ids := make([]string, len(shuffled))
	for i := range ids {
		ids[i] = e.newIDLocked()
	}
	e.mu.Unlock()

	assignments := make([]domain.Assignment, len(shuffled))
	for i, marker := range shuffled {
		assignments[i] = domain.Assignment{
			ID:          ids[i],
			SessionCode: sessionCode,
			RoundID:     roundID,
			MarkerName:  marker,
			MarkeeName:  shuffled[(i+1)%len(shuffled)],
		}
	}
	return assignments
}

func (e *MarkingEngine) newIDLocked() string {
	return fmt.Sprintf("asg-%08x", e.rnd.Uint32())
}
