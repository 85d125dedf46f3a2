package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrCode identifies an API error.
type ErrCode string

const (
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionClosed   ErrCode = "SESSION_CLOSED"
	ErrConflict        ErrCode = "CONFLICT"
	ErrDataUnavailable ErrCode = "DATA_UNAVAILABLE"
	ErrInternal        ErrCode = "INTERNAL_ERROR"
)

// Message returns a human-readable message for code.
func Message(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Check the request fields."
	case ErrNotFound:
		return "Session not found."
	case ErrSessionClosed:
		return "Session has already ended."
	case ErrConflict:
		return "Session already exists."
	case ErrDataUnavailable:
		return "A backing service is unavailable. Try again shortly."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}

// Response is the API response envelope.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody is a structured error.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata carries request tracing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ContextKeyRequestID is the gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// RequestID reuses X-Request-ID or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Data: data, Metadata: metadata(c)})
}

func fail(c *gin.Context, status int, code ErrCode, fields map[string]string) {
	c.JSON(status, Response{
		Error:    &ErrorBody{Code: code, Message: Message(code), Fields: fields},
		Metadata: metadata(c),
	})
}

func metadata(c *gin.Context) Metadata {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.New().String()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
