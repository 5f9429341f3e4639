package domain

import "errors"

var (
	// ErrSessionNotFound covers unknown and expired codes alike so that a guessed
	// code cannot be probed for liveness.
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrSessionClosed is returned for any mutation attempted on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrInvalidState is returned when a transition is attempted outside its valid state.
	ErrInvalidState = errors.New("invalid session state for this operation")
	// ErrTemplateNotFound indicates the quiz template could not be loaded.
	ErrTemplateNotFound = errors.New("quiz template not found")
	// ErrRoundNotFound indicates a round ID that does not belong to the session's template.
	ErrRoundNotFound = errors.New("round not found in template")
	// ErrQuestionNotFound indicates a question ID outside the referenced round.
	ErrQuestionNotFound = errors.New("question not found in round")
	// ErrMemberNotFound is returned when a display name is not registered in the session.
	ErrMemberNotFound = errors.New("member not found in session")
	// ErrAssignmentNotFound is returned when a score targets an unknown assignment.
	ErrAssignmentNotFound = errors.New("marking assignment not found")
	// ErrCodeTaken is the store-level unique violation on session codes.
	ErrCodeTaken = errors.New("session code already taken")
	// ErrCodeSpaceExhausted is returned after the bounded retry budget for code
	// minting is spent. Practically unreachable with the full alphabet.
	ErrCodeSpaceExhausted = errors.New("session code space exhausted")
	// ErrAnswersFrozen is returned for answer writes once marking covers the round.
	ErrAnswersFrozen = errors.New("answers are frozen for marking")
	// ErrInvalidScore is returned for score values outside {0, 0.5, 1}.
	ErrInvalidScore = errors.New("score value must be 0, 0.5 or 1")
)
