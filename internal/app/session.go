package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// Session is the in-process aggregate for one running session: the session
// record itself plus its members, answers, marking assignments and scores.
// Every mutation locks the aggregate, which gives the single-writer-per-session
// discipline the sync protocol relies on.
type Session struct {
	mu   sync.Mutex
	now  func() time.Time
	data domain.Session

	members     map[string]domain.Member
	answers     map[answerKey]domain.Answer
	assignments map[string][]domain.Assignment // keyed by round ID
	scores      map[scoreKey]domain.Score
}

type answerKey struct {
	displayName string
	questionID  string
}

type scoreKey struct {
	assignmentID string
	questionID   string
}

// NewSession builds a waiting session for the given code/template/owner.
func NewSession(code, templateID, ownerID string) *Session {
	return NewSessionWithClock(code, templateID, ownerID, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(code, templateID, ownerID string, now func() time.Time) *Session {
	created := now()
	return &Session{
		now: now,
		data: domain.Session{
			Code:           code,
			TemplateID:     templateID,
			OwnerID:        ownerID,
			Status:         domain.StatusWaiting,
			CreatedAt:      created,
			LastActivityAt: created,
		},
		members:     make(map[string]domain.Member),
		answers:     make(map[answerKey]domain.Answer),
		assignments: make(map[string][]domain.Assignment),
		scores:      make(map[scoreKey]domain.Score),
	}
}

// Snapshot returns a copy of the session record.
func (s *Session) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// LastActivity reports when the session was last mutated.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastActivityAt
}

// IdleLongerThan reports whether the session has seen no mutation for more than ttl.
func (s *Session) IdleLongerThan(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.data.LastActivityAt) > ttl
}

// Open moves waiting -> active. Opening an already-active session is a no-op.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.data.Status {
	case domain.StatusClosed:
		return domain.ErrSessionClosed
	case domain.StatusActive:
		return nil
	}
	s.data.Status = domain.StatusActive
	s.touchLocked()
	return nil
}

// SetRound moves the round pointer; an empty roundID clears the display.
// Marking mode is deliberately left untouched: the two flags are orthogonal
// and callers wanting a "resume game" transition clear marking explicitly.
func (s *Session) SetRound(roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireActiveLocked(); err != nil {
		return err
	}
	s.data.CurrentRoundID = roundID
	s.touchLocked()
	return nil
}

// SetMarking records the marking flag. Assignment computation is the caller's
// job; the state machine only tracks the flag.
func (s *Session) SetMarking(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireActiveLocked(); err != nil {
		return err
	}
	s.data.MarkingEnabled = enabled
	s.touchLocked()
	return nil
}

// Close is terminal. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return nil
	}
	s.data.Status = domain.StatusClosed
	s.touchLocked()
	return nil
}

// Reset returns the session to a fresh waiting state, dropping members,
// answers, assignments and scores.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	s.data.Status = domain.StatusWaiting
	s.data.CurrentRoundID = ""
	s.data.MarkingEnabled = false
	s.members = make(map[string]domain.Member)
	s.answers = make(map[answerKey]domain.Answer)
	s.assignments = make(map[string][]domain.Assignment)
	s.scores = make(map[scoreKey]domain.Score)
	s.touchLocked()
	return nil
}

// Join registers a display name. Joining with a name that is already present
// refreshes nothing and simply returns the member list.
func (s *Session) Join(displayName string) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return nil, domain.ErrSessionClosed
	}
	if _, ok := s.members[displayName]; !ok {
		s.members[displayName] = domain.Member{
			SessionCode: s.data.Code,
			DisplayName: displayName,
			JoinedAt:    s.now(),
		}
	}
	s.touchLocked()
	return s.membersLocked(), nil
}

// RemoveMember drops a display name from the session.
func (s *Session) RemoveMember(displayName string) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return nil, domain.ErrSessionClosed
	}
	if _, ok := s.members[displayName]; !ok {
		return nil, domain.ErrMemberNotFound
	}
	delete(s.members, displayName)
	s.touchLocked()
	return s.membersLocked(), nil
}

// Members returns the member list sorted by join time, then name.
func (s *Session) Members() []domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked()
}

// SubmitAnswer upserts a player's answer with last-write-wins semantics.
// Whitespace-only text is a no-op, not an error. Writes are rejected while
// marking mode is on, and for any round that already has assignments.
func (s *Session) SubmitAnswer(displayName, questionID, roundID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	if _, ok := s.members[displayName]; !ok {
		return domain.ErrMemberNotFound
	}
	if s.data.MarkingEnabled {
		return domain.ErrAnswersFrozen
	}
	if len(s.assignments[roundID]) > 0 {
		return domain.ErrAnswersFrozen
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s.answers[answerKey{displayName, questionID}] = domain.Answer{
		SessionCode: s.data.Code,
		DisplayName: displayName,
		QuestionID:  questionID,
		RoundID:     roundID,
		Text:        text,
		SubmittedAt: s.now(),
	}
	s.touchLocked()
	return nil
}

// Answers returns a player's answers for one round, keyed by question ID.
func (s *Session) Answers(displayName, roundID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for key, answer := range s.answers {
		if key.displayName == displayName && answer.RoundID == roundID {
			out[key.questionID] = answer.Text
		}
	}
	return out
}

// AnswerFor returns one stored answer, if present.
func (s *Session) AnswerFor(displayName, questionID string) (domain.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.answers[answerKey{displayName, questionID}]
	return answer, ok
}

// ReplaceAssignments atomically rebuilds the marking assignments for a round
// from the membership at call time. The build callback runs under the session
// lock so membership cannot drift between read and write. Replacing a round's
// assignments also drops their recorded scores.
func (s *Session) ReplaceAssignments(roundID string, build func(members []string) []domain.Assignment) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return nil, domain.ErrSessionClosed
	}
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	sort.Strings(names)

	s.dropAssignmentsLocked(roundID)
	next := build(names)
	s.assignments[roundID] = next
	s.touchLocked()
	return append([]domain.Assignment(nil), next...), nil
}

// ClearAssignments removes assignments (and their scores) for one round, or
// for every round when roundID is empty.
func (s *Session) ClearAssignments(roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	if roundID == "" {
		for id := range s.assignments {
			s.dropAssignmentsLocked(id)
		}
	} else {
		s.dropAssignmentsLocked(roundID)
	}
	s.touchLocked()
	return nil
}

// HasAssignments reports whether marking has been triggered for a round.
func (s *Session) HasAssignments(roundID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assignments[roundID]) > 0
}

// AssignmentsForMarker returns every assignment where the name is the marker.
func (s *Session) AssignmentsForMarker(displayName string) []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assignment
	for _, roundAssignments := range s.assignments {
		for _, a := range roundAssignments {
			if a.MarkerName == displayName {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out
}

// AssignmentByID looks up a single assignment.
func (s *Session) AssignmentByID(id string) (domain.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, roundAssignments := range s.assignments {
		for _, a := range roundAssignments {
			if a.ID == id {
				return a, true
			}
		}
	}
	return domain.Assignment{}, false
}

// AllAssignments returns every assignment across all rounds.
func (s *Session) AllAssignments() []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assignment
	for _, roundAssignments := range s.assignments {
		out = append(out, roundAssignments...)
	}
	return out
}

// SubmitScore upserts a mark for one question under an assignment.
func (s *Session) SubmitScore(assignmentID, questionID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	found := false
	for _, roundAssignments := range s.assignments {
		for _, a := range roundAssignments {
			if a.ID == assignmentID {
				found = true
			}
		}
	}
	if !found {
		return domain.ErrAssignmentNotFound
	}
	s.scores[scoreKey{assignmentID, questionID}] = domain.Score{
		AssignmentID: assignmentID,
		QuestionID:   questionID,
		Value:        value,
		MarkedAt:     s.now(),
	}
	s.touchLocked()
	return nil
}

// ScoreFor returns a recorded mark, if any.
func (s *Session) ScoreFor(assignmentID, questionID string) (domain.Score, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[scoreKey{assignmentID, questionID}]
	return score, ok
}

// AllScores returns every recorded mark.
func (s *Session) AllScores() []domain.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Score, 0, len(s.scores))
	for _, score := range s.scores {
		out = append(out, score)
	}
	return out
}

func (s *Session) requireActiveLocked() error {
	switch s.data.Status {
	case domain.StatusClosed:
		return domain.ErrSessionClosed
	case domain.StatusActive:
		return nil
	default:
		return domain.ErrInvalidState
	}
}

func (s *Session) touchLocked() {
	s.data.LastActivityAt = s.now()
}

func (s *Session) dropAssignmentsLocked(roundID string) {
	for _, a := range s.assignments[roundID] {
		for key := range s.scores {
			if key.assignmentID == a.ID {
				delete(s.scores, key)
			}
		}
	}
	delete(s.assignments, roundID)
}

func (s *Session) membersLocked() []domain.Member {
	out := make([]domain.Member, 0, len(s.members))
	for _, member := range s.members {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}
