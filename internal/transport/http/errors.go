package http

import (
	"errors"
	"net/http"

	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Kind                string `json:"kind"`
	Message             string `json:"message"`
	Field               string `json:"field,omitempty"`
	UnansweredQuestions []int  `json:"unansweredQuestions,omitempty"`
}

type errorResponse struct {
	Error  errorBody       `json:"error"`
	Result *quizResultView `json:"result,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP. Anything unrecognised
// is logged and reported generically.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verr   *domain.ValidationError
		passed *domain.AlreadyPassedError
		fields validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:                "validation",
			Message:             err.Error(),
			Field:               verr.Field,
			UnansweredQuestions: verr.Unanswered,
		}})
	case errors.As(err, &fields):
		first := fields[0]
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:    "validation",
			Message: first.Field() + " failed on the '" + first.Tag() + "' rule",
			Field:   first.Field(),
		}})
	case errors.As(err, &passed):
		view := newQuizResultView(passed.Result)
		c.JSON(http.StatusConflict, errorResponse{
			Error:  errorBody{Kind: "already_passed", Message: passed.Error()},
			Result: &view,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: errorBody{Kind: "not_found", Message: err.Error()}})
	case errors.Is(err, domain.ErrQuizExists):
		c.JSON(http.StatusConflict, errorResponse{Error: errorBody{Kind: "conflict", Message: err.Error()}})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: errorBody{Kind: "conflict", Message: "progress is being updated concurrently, please retry"}})
	default:
		h.log.WithError(err).WithFields(requestFields(c)).Error("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: errorBody{Kind: "internal", Message: "internal server error"}})
	}
}

// badPayload reports a body that could not be decoded at all.
func (h *Handler) badPayload(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrValidation) {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Kind: "validation", Message: "invalid request payload"}})
}
