package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"statwizard/internal/config"
	"statwizard/internal/conversation"
	"statwizard/internal/models"
	"statwizard/internal/service/assistant"
	"statwizard/internal/session"
)

const (
	noticePending = "pending"
	noticeError   = "error"
)

var noticeText = map[string]string{
	noticePending: "Your previous question is still being answered. Please wait for the reply.",
	noticeError:   "Something went wrong. Please try again.",
}

// Handler wires HTTP routes to the orchestrator and the conversation manager.
type Handler struct {
	assistant *assistant.Service
	manager   *conversation.Manager
	sessions  *session.Service
	timeout   time.Duration
	log       zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, manager *conversation.Manager, sessions *session.Service, timeout time.Duration, log zerolog.Logger) *Handler {
	if timeout <= 0 {
		timeout = config.DefaultCompletionTimeout
	}
	return &Handler{
		assistant: service,
		manager:   manager,
		sessions:  sessions,
		timeout:   timeout,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	tmpl, err := LoadTemplates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	router.Use(RequestLogger(h.log))

	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Stateless entry points carry no session cookie to protect.
	api := router.Group("/api")
	api.POST("/chat", h.chat)
	api.POST("/recommendation", h.recommendation)

	pages := router.Group("/")
	pages.Use(h.sessions.Middleware(), h.sessions.CSRFMiddleware())
	pages.GET("/", h.chatPage)
	pages.POST("/chat", h.submitChat)
	pages.POST("/session/new", h.newSession)
	pages.GET("/recommend", h.recommendPage)
	pages.POST("/recommend", h.submitRecommendation)
	pages.GET("/api/conversation", h.getConversation)
	pages.POST("/api/conversation/messages", h.postMessage)
	return nil
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// detached returns a context that survives the client going away, bounded by
// the completion timeout.
func (h *Handler) detached(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.timeout)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx, cancel := h.detached(c)
	defer cancel()
	c.JSON(http.StatusOK, h.assistant.SendChatMessage(ctx, req.Message))
}

func (h *Handler) recommendation(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ctx, cancel := h.detached(c)
	defer cancel()
	c.JSON(http.StatusOK, h.assistant.GetStatisticalRecommendation(ctx, c.Request.PostForm))
}

func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	id, ok := session.IDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
	}
	return id, ok
}

func (h *Handler) getConversation(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	conv, err := h.manager.Conversation(id).Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("load conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) postMessage(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ex, err := h.manager.Submit(c.Request.Context(), id, req.Message)
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": &assistant.Error{
			Kind:    assistant.ErrorKindEmptyInput,
			Message: assistant.UserMessage(assistant.PreambleChat, assistant.ErrorKindEmptyInput),
		}})
	case errors.Is(err, conversation.ErrPending):
		c.JSON(http.StatusConflict, gin.H{"error": noticeText[noticePending]})
	case err != nil:
		h.log.Error().Err(err).Str("session", id).Msg("submit message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": noticeText[noticeError]})
	default:
		c.JSON(http.StatusOK, ex)
	}
}

type chatPageData struct {
	Messages  []models.Message
	Failure   *models.Failure
	Pending   bool
	Draft     string
	Notice    string
	CSRFToken string
	Examples  []Example
}

func (h *Handler) chatPage(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	data := chatPageData{
		CSRFToken: session.CSRFTokenFromContext(c),
		Examples:  exampleQuestions,
		Notice:    noticeText[c.Query("notice")],
	}
	conv, err := h.manager.Conversation(id).Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("load conversation")
		data.Notice = noticeText[noticeError]
	} else {
		data.Messages = conv.Messages
		data.Failure = conv.Failure
		data.Pending = conv.Pending
		if conv.Failure != nil {
			data.Draft = conv.Failure.Draft
		}
	}
	if n, err := strconv.Atoi(c.Query("example")); err == nil {
		if ex, ok := exampleAt(n); ok {
			data.Draft = ex.Question
		}
	}
	c.HTML(http.StatusOK, "chat.html", data)
}

func (h *Handler) submitChat(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	_, err := h.manager.Submit(c.Request.Context(), id, c.PostForm("message"))
	switch {
	case err == nil, errors.Is(err, conversation.ErrEmptyInput):
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, conversation.ErrPending):
		c.Redirect(http.StatusSeeOther, "/?notice="+noticePending)
	default:
		h.log.Error().Err(err).Str("session", id).Msg("submit message")
		c.Redirect(http.StatusSeeOther, "/?notice="+noticeError)
	}
}

func (h *Handler) newSession(c *gin.Context) {
	if _, err := h.sessions.Reset(c); err != nil {
		h.log.Error().Err(err).Msg("reset session")
		c.Redirect(http.StatusSeeOther, "/?notice="+noticeError)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

type recommendPageData struct {
	Question       string
	Recommendation string
	Error          string
	Pending        bool
	CSRFToken      string
	Examples       []Example
}

func (h *Handler) recommendPage(c *gin.Context) {
	data := recommendPageData{
		Question:  exampleQuestions[0].Question,
		CSRFToken: session.CSRFTokenFromContext(c),
		Examples:  exampleQuestions,
	}
	if n, err := strconv.Atoi(c.Query("example")); err == nil {
		if ex, ok := exampleAt(n); ok {
			data.Question = ex.Question
		}
	}
	c.HTML(http.StatusOK, "recommend.html", data)
}

func (h *Handler) submitRecommendation(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	ctx, cancel := h.detached(c)
	defer cancel()
	res := h.assistant.GetStatisticalRecommendation(ctx, c.Request.PostForm)

	data := recommendPageData{
		Question:       c.Request.PostForm.Get(assistant.ResearchQuestionField),
		Recommendation: res.Recommendation,
		CSRFToken:      session.CSRFTokenFromContext(c),
		Examples:       exampleQuestions,
	}
	if res.Error != nil {
		data.Error = res.Error.Message
	}
	c.HTML(http.StatusOK, "recommend.html", data)
}
