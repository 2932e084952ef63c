package http

import (
	"net/http"

	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// serveProgressWS streams the learner's CourseProgress for one course: the
// current snapshot first, then one message per change.
func (h *Handler) serveProgressWS(c *gin.Context) {
	courseID := c.Query("courseId")
	if courseID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Kind: "validation", Message: "missing courseId", Field: "courseId"}})
		return
	}
	learner := learnerFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before reading the snapshot so no change falls in between.
	updates, cancel := h.feed.Subscribe(learner.UserID, courseID)
	defer cancel()

	snapshot, err := h.progress.Snapshot(c.Request.Context(), learner, courseID)
	if err != nil {
		h.log.WithError(err).WithField("courseId", courseID).Error("load progress snapshot")
		_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: errorBody{Kind: "internal", Message: "internal server error"}})
		return
	}
	if err := conn.WriteJSON(outboundMessage[domain.CourseProgress]{Type: "progress", Payload: snapshot}); err != nil {
		return
	}

	// The reader only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.CourseProgress]{Type: "progress", Payload: update}); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		case <-closed:
			return
		}
	}
}
