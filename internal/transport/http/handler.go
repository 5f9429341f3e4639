package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/powmonk/qubpiz-sub000/internal/app"
	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// Handler exposes the session use cases over the polling HTTP surface.
type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

type createSessionRequest struct {
	TemplateID string `json:"templateId" binding:"required"`
	OwnerID    string `json:"ownerId" binding:"required"`
}

type setRoundRequest struct {
	// A null roundId clears the display, so the field is a pointer.
	RoundID *string `json:"roundId"`
}

type setMarkingRequest struct {
	Enabled bool `json:"enabled"`
}

type joinRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

type submitAnswerRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
	QuestionID  string `json:"questionId" binding:"required"`
	RoundID     string `json:"roundId" binding:"required"`
	Text        string `json:"text"`
}

type triggerMarkingRequest struct {
	RoundID string `json:"roundId" binding:"required"`
}

type submitScoreRequest struct {
	AssignmentID string   `json:"assignmentId" binding:"required"`
	QuestionID   string   `json:"questionId" binding:"required"`
	Value        *float64 `json:"value" binding:"required"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.service.CreateSession(c.Request.Context(), req.TemplateID, req.OwnerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": session.Code, "session": session})
}

func (h *Handler) listSessions(c *gin.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ownerId query parameter required"})
		return
	}
	sessions := h.service.ListByOwner(c.Request.Context(), ownerID)
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSession(c *gin.Context) {
	session, tmpl, err := h.service.GetSession(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "template": tmpl})
}

func (h *Handler) getStatus(c *gin.Context) {
	snapshot, err := h.service.Status(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) openSession(c *gin.Context) {
	if err := h.service.Open(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) setRound(c *gin.Context) {
	var req setRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roundID := ""
	if req.RoundID != nil {
		roundID = *req.RoundID
	}
	if err := h.service.SetRound(c.Request.Context(), c.Param("code"), roundID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) setMarking(c *gin.Context) {
	var req setMarkingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SetMarking(c.Request.Context(), c.Param("code"), req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markingEnabled": req.Enabled})
}

func (h *Handler) clearMarking(c *gin.Context) {
	if err := h.service.ClearMarking(c.Request.Context(), c.Param("code"), c.Query("roundId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listMembers(c *gin.Context) {
	members, err := h.service.Members(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": membersOrEmpty(members)})
}

func (h *Handler) join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	members, err := h.service.Join(c.Request.Context(), c.Param("code"), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": membersOrEmpty(members)})
}

func (h *Handler) removeMember(c *gin.Context) {
	members, err := h.service.RemoveMember(c.Request.Context(), c.Param("code"), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": membersOrEmpty(members)})
}

func (h *Handler) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.service.SubmitAnswer(c.Request.Context(), c.Param("code"), req.DisplayName, req.QuestionID, req.RoundID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) getAnswers(c *gin.Context) {
	answers, err := h.service.Answers(c.Request.Context(), c.Param("code"), c.Param("name"), c.Param("roundId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

func (h *Handler) triggerMarking(c *gin.Context) {
	var req triggerMarkingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	assignments, insufficient, err := h.service.TriggerMarking(c.Request.Context(), c.Param("code"), req.RoundID)
	if err != nil {
		writeError(c, err)
		return
	}
	if insufficient {
		c.JSON(http.StatusOK, gin.H{"insufficientPlayers": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

func (h *Handler) getAssignments(c *gin.Context) {
	views, err := h.service.MarkingViews(c.Request.Context(), c.Param("code"), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if views == nil {
		views = []domain.MarkingView{}
	}
	c.JSON(http.StatusOK, gin.H{"assignments": views})
}

func (h *Handler) submitScore(c *gin.Context) {
	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.service.SubmitScore(c.Request.Context(), c.Param("code"), req.AssignmentID, req.QuestionID, *req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) getResults(c *gin.Context) {
	results, err := h.service.Results(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if results == nil {
		results = []domain.ResultRow{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) endSession(c *gin.Context) {
	if err := h.service.End(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) resetSession(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context(), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func membersOrEmpty(members []domain.Member) []domain.Member {
	if members == nil {
		return []domain.Member{}
	}
	return members
}

// writeError maps domain errors to structured responses. Unknown and expired
// sessions share one 404 shape so guessed codes leak nothing.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired, check your code", "kind": "NotFound"})
	case errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "NotFound"})
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "InvalidState"})
	case errors.Is(err, domain.ErrAnswersFrozen),
		errors.Is(err, domain.ErrInvalidScore):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "Conflict"})
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "kind": "CodeSpaceExhausted"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "try again", "kind": "Internal"})
	}
}
