package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/powmonk/qubpiz-sub000/internal/app"
	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/infra/memory"
)

func TestStateMachineTransitions(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, err := service.CreateSession(ctx, "demo-quiz", "mc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	code := session.Code
	if session.Status != domain.StatusWaiting {
		t.Fatalf("expected waiting, got %s", session.Status)
	}

	// Round changes require an active session.
	if err := service.SetRound(ctx, code, "r1"); err != domain.ErrInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}

	if err := service.Open(ctx, code); err != nil {
		t.Fatalf("open: %v", err)
	}
	// Opening again is a no-op.
	if err := service.Open(ctx, code); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	if err := service.SetRound(ctx, code, "r1"); err != nil {
		t.Fatalf("set round: %v", err)
	}
	if err := service.SetRound(ctx, code, "nope"); err != domain.ErrRoundNotFound {
		t.Fatalf("expected round not found, got %v", err)
	}

	// Clearing the round leaves marking untouched: the flags are orthogonal.
	if err := service.SetMarking(ctx, code, true); err != nil {
		t.Fatalf("set marking: %v", err)
	}
	if err := service.SetRound(ctx, code, ""); err != nil {
		t.Fatalf("clear round: %v", err)
	}
	status, err := service.Status(ctx, code)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.MarkingEnabled || status.CurrentRoundID != "" {
		t.Fatalf("expected marking on with no round, got %+v", status)
	}

	if err := service.End(ctx, code); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := service.SetRound(ctx, code, "r1"); err != domain.ErrSessionClosed {
		t.Fatalf("expected closed, got %v", err)
	}
	if err := service.SetMarking(ctx, code, false); err != domain.ErrSessionClosed {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, err := service.Join(ctx, code, "Late"); err != domain.ErrSessionClosed {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")

	if _, err := service.Join(ctx, code, "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	members, err := service.Join(ctx, code, "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member after rejoin, got %d", len(members))
	}

	members, err = service.RemoveMember(ctx, code, "Alice")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty member list, got %+v", members)
	}
	if _, err := service.RemoveMember(ctx, code, "Alice"); err != domain.ErrMemberNotFound {
		t.Fatalf("expected member not found, got %v", err)
	}
}

func TestAnswerUpsertSemantics(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice")

	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "mars"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "Mars"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	// Whitespace-only submits are a silent no-op, never a delete.
	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "   "); err != nil {
		t.Fatalf("blank submit: %v", err)
	}

	answers, err := service.Answers(ctx, code, "Alice", "r1")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if answers["q1"] != "Mars" {
		t.Fatalf("expected last non-blank write to win, got %q", answers["q1"])
	}
	if len(answers) != 1 {
		t.Fatalf("expected exactly one answer, got %+v", answers)
	}

	if err := service.SubmitAnswer(ctx, code, "Alice", "q-bogus", "r1", "x"); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question not found, got %v", err)
	}
	if err := service.SubmitAnswer(ctx, code, "Ghost", "q1", "r1", "x"); err != domain.ErrMemberNotFound {
		t.Fatalf("expected member not found, got %v", err)
	}
}

func TestAnswersFreezeOnceMarked(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice", "Bob")
	if err := service.Open(ctx, code); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "mars"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := service.TriggerMarking(ctx, code, "r1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Round r1 now has assignments, so its answers are frozen even with
	// marking mode off.
	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "venus"); err != domain.ErrAnswersFrozen {
		t.Fatalf("expected frozen, got %v", err)
	}
	// Other rounds stay editable until marking mode flips on.
	if err := service.SubmitAnswer(ctx, code, "Alice", "q3", "r2", "eiffel"); err != nil {
		t.Fatalf("other round submit: %v", err)
	}
	if err := service.SetMarking(ctx, code, true); err != nil {
		t.Fatalf("set marking: %v", err)
	}
	if err := service.SubmitAnswer(ctx, code, "Alice", "q3", "r2", "louvre"); err != domain.ErrAnswersFrozen {
		t.Fatalf("expected frozen in marking mode, got %v", err)
	}

	// Clearing marking for the round unfreezes it.
	if err := service.SetMarking(ctx, code, false); err != nil {
		t.Fatalf("unset marking: %v", err)
	}
	if err := service.ClearMarking(ctx, code, "r1"); err != nil {
		t.Fatalf("clear marking: %v", err)
	}
	if err := service.SubmitAnswer(ctx, code, "Alice", "q1", "r1", "venus"); err != nil {
		t.Fatalf("post-clear submit: %v", err)
	}
}

func TestTriggerMarkingReplaces(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice", "Bob", "Cara")

	first, insufficient, err := service.TriggerMarking(ctx, code, "r1")
	if err != nil || insufficient {
		t.Fatalf("trigger: insufficient=%v err=%v", insufficient, err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(first))
	}

	if err := service.SubmitScore(ctx, code, first[0].ID, "q1", 1); err != nil {
		t.Fatalf("score: %v", err)
	}

	// Re-trigger replaces: old assignment IDs are gone and so are their scores.
	second, insufficient, err := service.TriggerMarking(ctx, code, "r1")
	if err != nil || insufficient {
		t.Fatalf("retrigger: insufficient=%v err=%v", insufficient, err)
	}
	if len(second) != 3 {
		t.Fatalf("expected 3 assignments after retrigger, got %d", len(second))
	}
	if err := service.SubmitScore(ctx, code, first[0].ID, "q1", 1); err != domain.ErrAssignmentNotFound {
		t.Fatalf("expected stale assignment rejected, got %v", err)
	}
	results, err := service.Results(ctx, code)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	for _, row := range results {
		if row.TotalScore != 0 {
			t.Fatalf("expected scores dropped with replaced assignments, got %+v", row)
		}
	}
}

func TestTriggerMarkingInsufficientPlayers(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice")

	assignments, insufficient, err := service.TriggerMarking(ctx, code, "r1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !insufficient || len(assignments) != 0 {
		t.Fatalf("expected insufficient players, got insufficient=%v assignments=%v", insufficient, assignments)
	}
}

func TestScoreValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice", "Bob")

	assignments, _, err := service.TriggerMarking(ctx, code, "r1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := service.SubmitScore(ctx, code, assignments[0].ID, "q1", 0.7); err != domain.ErrInvalidScore {
		t.Fatalf("expected invalid score, got %v", err)
	}
	if err := service.SubmitScore(ctx, code, "asg-missing", "q1", 1); err != domain.ErrAssignmentNotFound {
		t.Fatalf("expected assignment not found, got %v", err)
	}
	if err := service.SubmitScore(ctx, code, assignments[0].ID, "q3", 1); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected question outside round rejected, got %v", err)
	}
	// Marks may be corrected.
	if err := service.SubmitScore(ctx, code, assignments[0].ID, "q1", 0); err != nil {
		t.Fatalf("score: %v", err)
	}
	if err := service.SubmitScore(ctx, code, assignments[0].ID, "q1", 0.5); err != nil {
		t.Fatalf("rescore: %v", err)
	}
}

func TestFullGameScenario(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	session, err := service.CreateSession(ctx, "demo-quiz", "mc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	code := session.Code
	mustJoin(t, service, code, "Alice", "Bob", "Cara")

	if err := service.Open(ctx, code); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := service.SetRound(ctx, code, "r1"); err != nil {
		t.Fatalf("set round: %v", err)
	}
	for _, name := range []string{"Alice", "Bob", "Cara"} {
		if err := service.SubmitAnswer(ctx, code, name, "q1", "r1", name+" says mars"); err != nil {
			t.Fatalf("answer %s: %v", name, err)
		}
	}

	assignments, insufficient, err := service.TriggerMarking(ctx, code, "r1")
	if err != nil || insufficient {
		t.Fatalf("trigger: insufficient=%v err=%v", insufficient, err)
	}
	if err := service.SetMarking(ctx, code, true); err != nil {
		t.Fatalf("set marking: %v", err)
	}

	// Each marker sees exactly one assignment with the round's questions and
	// the markee's answer embedded.
	for _, a := range assignments {
		views, err := service.MarkingViews(ctx, code, a.MarkerName)
		if err != nil {
			t.Fatalf("views: %v", err)
		}
		if len(views) != 1 {
			t.Fatalf("expected 1 view for %s, got %d", a.MarkerName, len(views))
		}
		if len(views[0].Questions) != 2 {
			t.Fatalf("expected 2 questions, got %+v", views[0].Questions)
		}
		if views[0].Questions[0].Answer != a.MarkeeName+" says mars" {
			t.Fatalf("expected markee answer embedded, got %+v", views[0].Questions[0])
		}
	}

	values := []float64{0, 0.5, 1}
	for i, a := range assignments {
		if err := service.SubmitScore(ctx, code, a.ID, "q1", values[i]); err != nil {
			t.Fatalf("score: %v", err)
		}
	}

	results, err := service.Results(ctx, code)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 result rows, got %d", len(results))
	}
	if results[0].TotalScore != 1 || results[1].TotalScore != 0.5 || results[2].TotalScore != 0 {
		t.Fatalf("expected descending totals 1, 0.5, 0: %+v", results)
	}
	for _, row := range results {
		if row.Possible != 2 {
			t.Fatalf("expected possible=2 (round 1 question count), got %+v", row)
		}
		if row.MarkedBy == "" || row.MarkedBy == row.Markee {
			t.Fatalf("bad markedBy in %+v", row)
		}
	}
}

func TestSessionExpiryCascades(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }

	store := memory.NewSessionStoreWithClock(time.Hour, clock)
	templates := memory.NewTemplateRepository(memory.NewStaticTemplateLoader(sampleTemplates()), time.Minute)
	service := app.NewSessionService(store, templates, app.NewCodeGenerator(), app.NewMarkingEngine())

	session := app.NewSessionWithClock("ABC123", "demo-quiz", "mc", clock)
	if err := store.Insert(ctx, session); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := service.Join(ctx, "ABC123", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// 59 minutes idle: still reachable.
	now = now.Add(59 * time.Minute)
	if _, _, err := service.GetSession(ctx, "ABC123"); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}
	// The read did not count as activity; two more minutes pass the TTL.
	now = now.Add(2 * time.Minute)
	if _, _, err := service.GetSession(ctx, "ABC123"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
	// Cascade: membership is gone with the session.
	if _, err := service.Members(ctx, "ABC123"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected cascade, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected store emptied, got %d", store.Len())
	}
}

func TestMutationsKeepSessionAlive(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }

	store := memory.NewSessionStoreWithClock(time.Hour, clock)
	templates := memory.NewTemplateRepository(memory.NewStaticTemplateLoader(sampleTemplates()), time.Minute)
	service := app.NewSessionService(store, templates, app.NewCodeGenerator(), app.NewMarkingEngine())

	session := app.NewSessionWithClock("ABC123", "demo-quiz", "mc", clock)
	if err := store.Insert(ctx, session); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Activity every 40 minutes straddles the TTL repeatedly without expiry.
	for i := 0; i < 3; i++ {
		now = now.Add(40 * time.Minute)
		if _, err := service.Join(ctx, "ABC123", "Alice"); err != nil {
			t.Fatalf("join at step %d: %v", i, err)
		}
	}
	if _, _, err := service.GetSession(ctx, "ABC123"); err != nil {
		t.Fatalf("expected session kept alive by activity, got %v", err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	code := mustCreate(t, service, "mc")
	mustJoin(t, service, code, "Alice", "Bob")

	if _, _, err := service.TriggerMarking(ctx, code, "r1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := service.Reset(ctx, code); err != nil {
		t.Fatalf("reset: %v", err)
	}

	session, _, err := service.GetSession(ctx, code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if session.Status != domain.StatusWaiting || session.CurrentRoundID != "" || session.MarkingEnabled {
		t.Fatalf("expected fresh waiting session, got %+v", session)
	}
	members, err := service.Members(ctx, code)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected members cleared, got %+v", members)
	}
}

func TestListByOwner(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	mustCreate(t, service, "mc")
	mustCreate(t, service, "mc")
	mustCreate(t, service, "other")

	if got := len(service.ListByOwner(ctx, "mc")); got != 2 {
		t.Fatalf("expected 2 sessions for mc, got %d", got)
	}
	if got := len(service.ListByOwner(ctx, "nobody")); got != 0 {
		t.Fatalf("expected none for unknown owner, got %d", got)
	}
}

func newTestService() *app.SessionService {
	store := memory.NewSessionStore(time.Hour)
	templates := memory.NewTemplateRepository(memory.NewStaticTemplateLoader(sampleTemplates()), 5*time.Minute)
	return app.NewSessionService(store, templates, app.NewCodeGenerator(), app.NewMarkingEngine())
}

func sampleTemplates() map[string]domain.Template {
	return map[string]domain.Template{
		"demo-quiz": {
			ID:   "demo-quiz",
			Name: "Demo Pub Quiz",
			Rounds: []domain.Round{
				{ID: "r1", Name: "General Knowledge", Type: domain.RoundText, Questions: []domain.Question{
					{ID: "q1", Prompt: "Which planet is known as the Red Planet?"},
					{ID: "q2", Prompt: "In which year did the Berlin Wall fall?"},
				}},
				{ID: "r2", Name: "Picture Round", Type: domain.RoundPicture, Questions: []domain.Question{
					{ID: "q3", Prompt: "Name the landmark in picture 1"},
				}},
			},
		},
	}
}

func mustCreate(t *testing.T, service *app.SessionService, ownerID string) string {
	t.Helper()
	session, err := service.CreateSession(context.Background(), "demo-quiz", ownerID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session.Code
}

func mustJoin(t *testing.T, service *app.SessionService, code string, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := service.Join(context.Background(), code, name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
}
