package http

import (
	"net/http"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// UserHeader carries the learner id set by the upstream gateway once the
// caller is authenticated and enrolled.
const UserHeader = "X-User-ID"

const learnerKey = "learner"

// Handler exposes the assessment use cases over HTTP.
type Handler struct {
	quizzes     *app.QuizService
	submissions *app.SubmissionService
	progress    *app.ProgressService
	feed        *app.ProgressFeed
	log         logrus.FieldLogger
	validate    *validator.Validate
	upgrader    websocket.Upgrader
	now         func() time.Time
}

func NewHandler(quizzes *app.QuizService, submissions *app.SubmissionService, progress *app.ProgressService, feed *app.ProgressFeed, log logrus.FieldLogger) *Handler {
	return &Handler{
		quizzes:     quizzes,
		submissions: submissions,
		progress:    progress,
		feed:        feed,
		log:         log,
		validate:    validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Router wires every route onto a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1", h.requireLearner())
	api.POST("/quizzes", h.createQuiz)
	api.PUT("/quizzes/:quizId", h.updateQuiz)
	api.GET("/quizzes/:quizId", h.getQuiz)
	api.POST("/quizzes/:quizId/submit", h.submitQuiz)
	api.GET("/quizzes/:quizId/status", h.quizStatus)
	api.GET("/subsections/:subSectionId/quiz", h.getQuizBySubSection)
	api.GET("/subsections/:subSectionId/access", h.checkAccess)
	api.GET("/courses/:courseId/progress", h.courseProgress)
	api.POST("/courses/:courseId/lectures/:subSectionId/complete", h.completeLecture)

	r.GET("/ws/progress", h.requireLearner(), h.serveProgressWS)
	return r
}

func (h *Handler) requireLearner() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			userID = c.Query("userId")
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorBody{Kind: "unauthenticated", Message: "missing " + UserHeader}})
			return
		}
		c.Set(learnerKey, domain.Learner{UserID: userID, Now: h.now()})
		c.Next()
	}
}

func learnerFrom(c *gin.Context) domain.Learner {
	l, _ := c.MustGet(learnerKey).(domain.Learner)
	return l
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.WithFields(requestFields(c)).WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

func requestFields(c *gin.Context) logrus.Fields {
	fields := logrus.Fields{"method": c.Request.Method, "path": c.FullPath()}
	if userID := c.GetHeader(UserHeader); userID != "" {
		fields["userId"] = userID
	}
	if quizID := c.Param("quizId"); quizID != "" {
		fields["quizId"] = quizID
	}
	return fields
}

func (h *Handler) createQuiz(c *gin.Context) {
	var req quizDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badPayload(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(c, err)
		return
	}
	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), app.QuizDraft{
		SubSectionID: req.SubSectionID,
		Questions:    req.Questions,
		TimeLimit:    req.TimeLimit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *Handler) updateQuiz(c *gin.Context) {
	var req quizDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badPayload(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(c, err)
		return
	}
	quiz, err := h.quizzes.UpdateQuiz(c.Request.Context(), c.Param("quizId"), app.QuizDraft{
		Questions: req.Questions,
		TimeLimit: req.TimeLimit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *Handler) getQuiz(c *gin.Context) {
	quiz, err := h.quizzes.GetQuiz(c.Request.Context(), c.Param("quizId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLearnerQuiz(quiz))
}

func (h *Handler) getQuizBySubSection(c *gin.Context) {
	quiz, err := h.quizzes.GetQuizBySubSection(c.Request.Context(), c.Param("subSectionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLearnerQuiz(quiz))
}

func (h *Handler) submitQuiz(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badPayload(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.submissions.Submit(c.Request.Context(), learnerFrom(c), app.Submission{
		QuizID:       c.Param("quizId"),
		CourseID:     req.CourseID,
		SubSectionID: req.SubSectionID,
		Answers:      scoring.Answers(req.Answers),
		TimerExpired: req.TimerExpired,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSubmitResponse(res))
}

func (h *Handler) quizStatus(c *gin.Context) {
	status, err := h.submissions.Status(c.Request.Context(), learnerFrom(c), c.Param("quizId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(status))
}

func (h *Handler) checkAccess(c *gin.Context) {
	decision, err := h.progress.CheckAccess(c.Request.Context(), learnerFrom(c), c.Param("subSectionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accessResponse{CanAccess: decision.CanAccess, Message: decision.Reason})
}

func (h *Handler) courseProgress(c *gin.Context) {
	completion, err := h.progress.CoursePercentage(c.Request.Context(), learnerFrom(c), c.Param("courseId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, courseProgressResponse{
		CourseID:        completion.CourseID,
		Percentage:      scoring.Round1(completion.Percentage),
		CompletedVideos: completion.CompletedVideos,
		PassedQuizzes:   completion.PassedQuizzes,
		TotalUnits:      completion.TotalUnits,
	})
}

func (h *Handler) completeLecture(c *gin.Context) {
	progress, err := h.progress.CompleteLecture(c.Request.Context(), learnerFrom(c), c.Param("courseId"), c.Param("subSectionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
