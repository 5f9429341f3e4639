package app

import (
	"context"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/metrics"
)

// SessionStore abstracts how live sessions are kept (in-memory, Redis-backed).
// Get applies the idle TTL lazily: an expired session is deleted, cascading
// everything it owns, and reported as absent.
type SessionStore interface {
	Insert(ctx context.Context, session *Session) error
	Get(ctx context.Context, code string) (*Session, bool)
	Delete(ctx context.Context, code string)
	ListByOwner(ctx context.Context, ownerID string) []*Session
	// Touch refreshes the store-side liveness marker after a mutation. The
	// aggregate already stamps LastActivityAt itself; stores with an external
	// TTL authority (Redis EXPIRE) renew it here.
	Touch(ctx context.Context, code string)
}

// TemplateRepository loads quiz templates (from cache/backing store).
type TemplateRepository interface {
	GetTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// maxCodeAttempts bounds collision retries during session creation.
const maxCodeAttempts = 10

// SessionService contains the session lifecycle, sync and marking use cases.
type SessionService struct {
	sessions  SessionStore
	templates TemplateRepository
	codes     *CodeGenerator
	marking   *MarkingEngine
}

func NewSessionService(sessions SessionStore, templates TemplateRepository, codes *CodeGenerator, marking *MarkingEngine) *SessionService {
	return &SessionService{
		sessions:  sessions,
		templates: templates,
		codes:     codes,
		marking:   marking,
	}
}

// CreateSession mints a collision-free code and records a waiting session.
// The store's unique insert is the arbiter; collisions retry up to the
// attempt budget and then surface ErrCodeSpaceExhausted.
func (s *SessionService) CreateSession(ctx context.Context, templateID, ownerID string) (domain.Session, error) {
	if _, err := s.templates.GetTemplate(ctx, templateID); err != nil {
		return domain.Session{}, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		session := NewSession(s.codes.Generate(), templateID, ownerID)
		err := s.sessions.Insert(ctx, session)
		if err == domain.ErrCodeTaken {
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		metrics.SessionsCreated.Inc()
		return session.Snapshot(), nil
	}
	return domain.Session{}, domain.ErrCodeSpaceExhausted
}

// GetSession returns the session record together with its template.
func (s *SessionService) GetSession(ctx context.Context, code string) (domain.Session, domain.Template, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.Session{}, domain.Template{}, domain.ErrSessionNotFound
	}
	snapshot := session.Snapshot()
	tmpl, err := s.templates.GetTemplate(ctx, snapshot.TemplateID)
	if err != nil {
		return domain.Session{}, domain.Template{}, err
	}
	return snapshot, tmpl, nil
}

// ListByOwner returns the owner's live sessions.
func (s *SessionService) ListByOwner(ctx context.Context, ownerID string) []domain.Session {
	var out []domain.Session
	for _, session := range s.sessions.ListByOwner(ctx, ownerID) {
		out = append(out, session.Snapshot())
	}
	return out
}

// Status builds the poll snapshot every client reconciles against. Status
// reads never count as activity, so an abandoned session still expires even
// if something keeps polling it.
func (s *SessionService) Status(ctx context.Context, code string) (domain.StatusSnapshot, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.StatusSnapshot{}, domain.ErrSessionNotFound
	}
	snapshot := session.Snapshot()
	status := domain.StatusSnapshot{
		Status:         snapshot.Status,
		CurrentRoundID: snapshot.CurrentRoundID,
		MarkingEnabled: snapshot.MarkingEnabled,
	}
	if snapshot.CurrentRoundID != "" {
		tmpl, err := s.templates.GetTemplate(ctx, snapshot.TemplateID)
		if err != nil {
			return domain.StatusSnapshot{}, err
		}
		if round, ok := tmpl.Round(snapshot.CurrentRoundID); ok {
			status.CurrentRoundType = round.Type
			status.CurrentRoundName = round.Name
		}
	}
	metrics.StatusPolls.Inc()
	return status, nil
}

// Open moves the session from waiting to active.
func (s *SessionService) Open(ctx context.Context, code string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.Open(); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// SetRound points the session at a round of its template, or clears the
// pointer when roundID is empty.
func (s *SessionService) SetRound(ctx context.Context, code, roundID string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if roundID != "" {
		tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
		if err != nil {
			return err
		}
		if _, ok := tmpl.Round(roundID); !ok {
			return domain.ErrRoundNotFound
		}
	}
	if err := session.SetRound(roundID); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// SetMarking toggles marking mode.
func (s *SessionService) SetMarking(ctx context.Context, code string, enabled bool) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.SetMarking(enabled); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// End closes the session permanently.
func (s *SessionService) End(ctx context.Context, code string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.Close(); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// Reset clears the session back to a fresh waiting state.
func (s *SessionService) Reset(ctx context.Context, code string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.Reset(); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// Join registers a player; joining again with the same name is idempotent.
func (s *SessionService) Join(ctx context.Context, code, displayName string) ([]domain.Member, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	members, err := session.Join(displayName)
	if err != nil {
		return nil, err
	}
	s.sessions.Touch(ctx, code)
	return members, nil
}

// RemoveMember drops a player from the session.
func (s *SessionService) RemoveMember(ctx context.Context, code, displayName string) ([]domain.Member, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	members, err := session.RemoveMember(displayName)
	if err != nil {
		return nil, err
	}
	s.sessions.Touch(ctx, code)
	return members, nil
}

// Members returns the current member list.
func (s *SessionService) Members(ctx context.Context, code string) ([]domain.Member, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Members(), nil
}

// SubmitAnswer upserts a player's answer. The server tolerates arbitrarily
// frequent calls for the same key; debounce is caller discipline.
func (s *SessionService) SubmitAnswer(ctx context.Context, code, displayName, questionID, roundID, text string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
	if err != nil {
		return err
	}
	round, ok := tmpl.Round(roundID)
	if !ok {
		return domain.ErrRoundNotFound
	}
	if !roundHasQuestion(round, questionID) {
		return domain.ErrQuestionNotFound
	}
	if err := session.SubmitAnswer(displayName, questionID, roundID, text); err != nil {
		return err
	}
	metrics.AnswersSubmitted.Inc()
	s.sessions.Touch(ctx, code)
	return nil
}

// Answers returns a player's answers for one round, keyed by question ID.
func (s *SessionService) Answers(ctx context.Context, code, displayName, roundID string) (map[string]string, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Answers(displayName, roundID), nil
}

// TriggerMarking recomputes the assignment cycle for a round from current
// membership. A re-trigger replaces the round's previous assignments and
// their scores. With fewer than two members the insufficient flag comes back
// true with no assignments; that is a soft condition, not an error.
func (s *SessionService) TriggerMarking(ctx context.Context, code, roundID string) (assignments []domain.Assignment, insufficient bool, err error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, false, domain.ErrSessionNotFound
	}
	tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
	if err != nil {
		return nil, false, err
	}
	if _, ok := tmpl.Round(roundID); !ok {
		return nil, false, domain.ErrRoundNotFound
	}
	assignments, err = session.ReplaceAssignments(roundID, func(members []string) []domain.Assignment {
		return s.marking.Assign(code, roundID, members)
	})
	if err != nil {
		return nil, false, err
	}
	s.sessions.Touch(ctx, code)
	if len(assignments) == 0 {
		return nil, true, nil
	}
	metrics.MarkingTriggers.Inc()
	return assignments, false, nil
}

// ClearMarking drops assignments for a round (or all rounds when empty),
// unfreezing the affected answers.
func (s *SessionService) ClearMarking(ctx context.Context, code, roundID string) error {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.ClearAssignments(roundID); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// MarkingViews expands a marker's assignments with the round's questions, the
// markee's answers and any marks already recorded.
func (s *SessionService) MarkingViews(ctx context.Context, code, displayName string) ([]domain.MarkingView, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
	if err != nil {
		return nil, err
	}

	var views []domain.MarkingView
	for _, a := range session.AssignmentsForMarker(displayName) {
		round, ok := tmpl.Round(a.RoundID)
		if !ok {
			continue
		}
		view := domain.MarkingView{Assignment: a, RoundName: round.Name}
		for _, q := range round.Questions {
			mq := domain.MarkingQuestion{QuestionID: q.ID, Prompt: q.Prompt}
			if answer, ok := session.AnswerFor(a.MarkeeName, q.ID); ok {
				mq.Answer = answer.Text
			}
			if score, ok := session.ScoreFor(a.ID, q.ID); ok {
				value := score.Value
				mq.Score = &value
			}
			view.Questions = append(view.Questions, mq)
		}
		views = append(views, view)
	}
	return views, nil
}

// SubmitScore records a mark for one question under an assignment. Marks may
// be corrected: resubmitting overwrites.
func (s *SessionService) SubmitScore(ctx context.Context, code, assignmentID, questionID string, value float64) error {
	if value != 0 && value != 0.5 && value != 1 {
		return domain.ErrInvalidScore
	}
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return domain.ErrSessionNotFound
	}
	assignment, ok := session.AssignmentByID(assignmentID)
	if !ok {
		return domain.ErrAssignmentNotFound
	}
	tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
	if err != nil {
		return err
	}
	round, ok := tmpl.Round(assignment.RoundID)
	if !ok {
		return domain.ErrRoundNotFound
	}
	if !roundHasQuestion(round, questionID) {
		return domain.ErrQuestionNotFound
	}
	if err := session.SubmitScore(assignmentID, questionID, value); err != nil {
		return err
	}
	s.sessions.Touch(ctx, code)
	return nil
}

// Results rolls scores up per markee, sorted for the leaderboard.
func (s *SessionService) Results(ctx context.Context, code string) ([]domain.ResultRow, error) {
	session, ok := s.sessions.Get(ctx, code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	tmpl, err := s.templates.GetTemplate(ctx, session.Snapshot().TemplateID)
	if err != nil {
		return nil, err
	}
	return AggregateResults(tmpl, session.AllAssignments(), session.AllScores()), nil
}

func roundHasQuestion(round domain.Round, questionID string) bool {
	for _, q := range round.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}
