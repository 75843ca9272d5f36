package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/checker"
	"github.com/isdmx/codecheck/language"
	"github.com/isdmx/codecheck/logger"
)

// Checker runs the check pipeline
type Checker interface {
	Check(ctx context.Context, req checker.Request) (checker.Response, error)
	MaxSourceBytes() int
}

// ErrorResponse is the body of every non-200 reply
type ErrorResponse struct {
	Valid     bool           `json:"valid"`
	Error     string         `json:"error"`
	Code      apperr.Code    `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// LanguageEntry describes one canonical language
type LanguageEntry struct {
	Code     string   `json:"code"`
	Aliases  []string `json:"aliases"`
	Compiled bool     `json:"compiled"`
}

type handler struct {
	checker Checker
	logger  *zap.Logger
	now     func() time.Time
}

func (h *handler) check(c *gin.Context) {
	id := c.GetString(requestIDKey)

	var req checker.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	req.RequestID = id

	resp, err := h.checker.Check(c.Request.Context(), req)
	if err != nil {
		if !apperr.CodeOf(err).IsClient() {
			h.logger.Error("Check returned an internal fault",
				zap.String(logger.FieldRequestID, id),
				zap.Error(err))
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) languages(c *gin.Context) {
	aliases := language.Aliases()
	entries := make([]LanguageEntry, 0, len(aliases))
	for _, code := range language.Codes() {
		entries = append(entries, LanguageEntry{
			Code:     code.String(),
			Aliases:  aliases[code],
			Compiled: code.Compiled(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"languages": entries})
}

// bindError classifies a JSON decoding failure
func bindError(err error) *apperr.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.New(apperr.PayloadTooLarge).WithDetail("limit", tooLarge.Limit)
	}
	return apperr.Newf(apperr.InvalidParams, "malformed JSON body: %v", err)
}

// writeError renders err. Internal faults carry only their generic message.
func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	body := ErrorResponse{
		Error:     apperr.PublicMessage(err),
		Code:      code,
		RequestID: c.GetString(requestIDKey),
	}
	if e, ok := apperr.As(err); ok && code.IsClient() {
		body.Details = e.Details
	}
	c.JSON(code.HTTPStatus(), body)
}
