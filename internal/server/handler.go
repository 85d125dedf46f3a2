package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/engine"
	"github.com/abhisek/mentalmath/internal/session"
)

// Engine is the decision engine surface the handlers call.
type Engine interface {
	StartSession(ctx context.Context, req engine.StartRequest) (*session.Session, error)
	SubmitAnswer(ctx context.Context, req engine.AnswerRequest) (*engine.Decision, error)
	EndSession(ctx context.Context, id domain.SessionID) (session.Summary, error)
	Mastery(ctx context.Context, learner domain.LearnerID, topic domain.Topic) (float64, error)
}

// Handler serves the practice API.
type Handler struct {
	eng        Engine
	llmEnabled bool
	log        zerolog.Logger
}

type startRequest struct {
	SessionID  string   `json:"sessionId" binding:"omitempty,max=128"`
	UserID     string   `json:"userId" binding:"omitempty,max=128"`
	TopicOrder []string `json:"topicOrder" binding:"required,min=1,dive,required"`
	TimeBudget *float64 `json:"timeBudget" binding:"omitempty,gte=0"`
}

type startResponse struct {
	SessionID domain.SessionID `json:"sessionId"`
	StartedAt time.Time        `json:"startedAt"`
}

// StartSession handles POST /session/start.
func (h *Handler) StartSession(c *gin.Context) {
	var req startRequest
	if fields := bindJSON(c, &req); fields != nil {
		fail(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}

	topics := make([]domain.Topic, len(req.TopicOrder))
	for i, t := range req.TopicOrder {
		topics[i] = domain.Topic(t)
	}
	s, err := h.eng.StartSession(c.Request.Context(), engine.StartRequest{
		SessionID:  domain.SessionID(req.SessionID),
		LearnerID:  domain.LearnerID(req.UserID),
		TopicOrder: topics,
		TimeBudget: req.TimeBudget,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusCreated, startResponse{SessionID: s.ID, StartedAt: s.StartedAt})
}

type answerRequest struct {
	SessionID     string   `json:"sessionId" binding:"required"`
	QuestionID    string   `json:"questionId" binding:"required"`
	Topic         string   `json:"topic" binding:"required"`
	Subtopic      string   `json:"subtopic"`
	Difficulty    int      `json:"difficulty" binding:"required,min=1,max=5"`
	WasCorrect    *bool    `json:"wasCorrect" binding:"required"`
	TimeTaken     *float64 `json:"timeTaken" binding:"required,gte=0"`
	EstimatedTime *float64 `json:"estimatedTime" binding:"omitempty,gte=0"`
	Answer        string   `json:"answer"`
}

// SuggestNext handles POST /agent/suggest-next.
func (h *Handler) SuggestNext(c *gin.Context) {
	var req answerRequest
	if fields := bindJSON(c, &req); fields != nil {
		fail(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}

	d, err := h.eng.SubmitAnswer(c.Request.Context(), engine.AnswerRequest{
		SessionID:     domain.SessionID(req.SessionID),
		QuestionID:    domain.QuestionID(req.QuestionID),
		Topic:         domain.Topic(req.Topic),
		Subtopic:      req.Subtopic,
		Difficulty:    domain.Difficulty(req.Difficulty),
		Correct:       *req.WasCorrect,
		TimeTaken:     *req.TimeTaken,
		EstimatedTime: req.EstimatedTime,
		Answer:        req.Answer,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, d)
}

type endRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// EndSession handles POST /session/end.
func (h *Handler) EndSession(c *gin.Context) {
	var req endRequest
	if fields := bindJSON(c, &req); fields != nil {
		fail(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}

	sum, err := h.eng.EndSession(c.Request.Context(), domain.SessionID(req.SessionID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, sum)
}

type masteryQuery struct {
	UserID string `form:"userId" binding:"required"`
	Topic  string `form:"topic" binding:"required"`
}

type masteryResponse struct {
	UserID  domain.LearnerID `json:"userId"`
	Topic   domain.Topic     `json:"topic"`
	Mastery float64          `json:"mastery"`
}

// Mastery handles GET /mastery.
func (h *Handler) Mastery(c *gin.Context) {
	var q masteryQuery
	if fields := bindQuery(c, &q); fields != nil {
		fail(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}

	m, err := h.eng.Mastery(c.Request.Context(), domain.LearnerID(q.UserID), domain.Topic(q.Topic))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, masteryResponse{
		UserID:  domain.LearnerID(q.UserID),
		Topic:   domain.Topic(q.Topic),
		Mastery: m,
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"status": "ok", "llm_initialized": h.llmEnabled})
}

// writeError maps engine errors to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var invalid *domain.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		fail(c, http.StatusBadRequest, ErrValidation, map[string]string{invalid.Field: invalid.Reason})
	case errors.Is(err, domain.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrValidation, map[string]string{"detail": err.Error()})
	case errors.Is(err, domain.ErrSessionClosed):
		fail(c, http.StatusConflict, ErrSessionClosed, nil)
	case errors.Is(err, domain.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrNotFound, nil)
	case errors.Is(err, domain.ErrSessionExists):
		fail(c, http.StatusConflict, ErrConflict, nil)
	case errors.Is(err, domain.ErrDataUnavailable):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("backing service unavailable")
		fail(c, http.StatusServiceUnavailable, ErrDataUnavailable, nil)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		fail(c, http.StatusInternalServerError, ErrInternal, nil)
	}
}
