package domain

import "time"

// SessionStatus is the lifecycle stage of a running session.
type SessionStatus string

const (
	// StatusWaiting means the session exists but has not been opened to players.
	StatusWaiting SessionStatus = "waiting"
	// StatusActive means the session is live: the round pointer may move and marking may toggle.
	StatusActive SessionStatus = "active"
	// StatusClosed is terminal; no further player-visible mutation is allowed.
	StatusClosed SessionStatus = "closed"
)

// RoundType distinguishes how a round is rendered client-side.
type RoundType string

const (
	RoundText    RoundType = "text"
	RoundPicture RoundType = "picture"
	RoundMusic   RoundType = "music"
)

// Session is one running instance of a quiz template, identified by a short code.
// The status/round/marking triple lives here and only here, never on the template.
type Session struct {
	Code           string        `json:"code"`
	TemplateID     string        `json:"templateId"`
	OwnerID        string        `json:"ownerId"`
	Status         SessionStatus `json:"status"`
	CurrentRoundID string        `json:"currentRoundId,omitempty"`
	MarkingEnabled bool          `json:"markingEnabled"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
}

// Member is a display name registered against a session.
type Member struct {
	SessionCode string    `json:"sessionCode"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Answer is a player's free-text answer, unique per (session, player, question).
type Answer struct {
	SessionCode string    `json:"sessionCode"`
	DisplayName string    `json:"displayName"`
	QuestionID  string    `json:"questionId"`
	RoundID     string    `json:"roundId"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Assignment is a (marker, markee, round) triple produced by the marking engine.
// MarkerName never equals MarkeeName.
type Assignment struct {
	ID          string `json:"id"`
	SessionCode string `json:"sessionCode"`
	RoundID     string `json:"roundId"`
	MarkerName  string `json:"markerName"`
	MarkeeName  string `json:"markeeName"`
}

// Score is a single marked question, unique per (assignment, question).
// Value is restricted to 0, 0.5 or 1.
type Score struct {
	AssignmentID string    `json:"assignmentId"`
	QuestionID   string    `json:"questionId"`
	Value        float64   `json:"value"`
	MarkedAt     time.Time `json:"markedAt"`
}

// Question is a single free-text quiz question.
type Question struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// Round groups questions under a name and a presentation type.
type Round struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      RoundType  `json:"type"`
	Questions []Question `json:"questions"`
}

// Template is the authored quiz content a session runs against.
type Template struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rounds []Round `json:"rounds"`
}

// Round returns the round with the given ID, if present.
func (t Template) Round(roundID string) (Round, bool) {
	for _, r := range t.Rounds {
		if r.ID == roundID {
			return r, true
		}
	}
	return Round{}, false
}

// StatusSnapshot is the poll payload every client reconciles against.
type StatusSnapshot struct {
	Status           SessionStatus `json:"status"`
	CurrentRoundID   string        `json:"currentRoundId,omitempty"`
	CurrentRoundType RoundType     `json:"currentRoundType,omitempty"`
	CurrentRoundName string        `json:"currentRoundName,omitempty"`
	MarkingEnabled   bool          `json:"markingEnabled"`
}

// ResultRow is one leaderboard entry: total marked score for a markee.
type ResultRow struct {
	Markee     string  `json:"markee"`
	TotalScore float64 `json:"totalScore"`
	Possible   int     `json:"possible"`
	MarkedBy   string  `json:"markedBy"`
}

// MarkingQuestion pairs a question with the markee's answer and any recorded mark.
type MarkingQuestion struct {
	QuestionID string   `json:"questionId"`
	Prompt     string   `json:"prompt"`
	Answer     string   `json:"answer"`
	Score      *float64 `json:"score,omitempty"`
}

// MarkingView is an assignment expanded for the marker's screen.
type MarkingView struct {
	Assignment Assignment        `json:"assignment"`
	RoundName  string            `json:"roundName"`
	Questions  []MarkingQuestion `json:"questions"`
}
