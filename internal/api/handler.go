package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/muse/internal/chat"
	"github.com/xaenox/muse/internal/ideas"
	"github.com/xaenox/muse/internal/ingest"
	"github.com/xaenox/muse/internal/models"
	"github.com/xaenox/muse/internal/scoring"
	"go.uber.org/zap"
)

type Handler struct {
	chat       *chat.Service
	ingest     *ingest.Service
	engine     *scoring.Engine
	cache      *ideas.Cache
	maxEntries int
	logger     *zap.Logger
}

func NewHandler(chatSvc *chat.Service, ingestSvc *ingest.Service, engine *scoring.Engine, cache *ideas.Cache, maxRSSEntries int, logger *zap.Logger) *Handler {
	return &Handler{
		chat:       chatSvc,
		ingest:     ingestSvc,
		engine:     engine,
		cache:      cache,
		maxEntries: maxRSSEntries,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	chatGroup := r.Group("/chat")
	{
		chatGroup.POST("", h.SendMessage)
		chatGroup.POST("/sessions", h.CreateSession)
		chatGroup.GET("/sessions", h.ListSessions)
		chatGroup.GET("/sessions/:id", h.SessionHistory)
		chatGroup.DELETE("/sessions/:id", h.CloseSession)
		chatGroup.POST("/feedback", h.SubmitFeedback)
	}

	ideasGroup := r.Group("/ideas")
	{
		ideasGroup.GET("", h.ListIdeas)
		ideasGroup.POST("/manual", h.CreateManualIdea)
		ideasGroup.POST("/ingest/url", h.IngestURL)
		ideasGroup.POST("/ingest/rss", h.IngestRSS)
		ideasGroup.POST("/ingest/youtube", h.IngestYouTube)
		ideasGroup.POST("/:id/approve", h.ApproveIdea)
		ideasGroup.POST("/:id/reject", h.RejectIdea)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "agent": "muse"})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.SendMessage(c.Request.Context(), &req)
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidContextWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("Failed to process message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	// Body is optional; an anonymous session is valid.
	_ = c.ShouldBindJSON(&req)

	session, err := h.chat.CreateSession(c.Request.Context(), req.UserID)
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	activeOnly := c.Query("active_only") == "true"

	list, err := h.chat.ListSessions(c.Request.Context(), userID, activeOnly)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) SessionHistory(c *gin.Context) {
	history, err := h.chat.SessionHistory(c.Request.Context(), c.Param("id"))
	if errors.Is(err, chat.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get session history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) CloseSession(c *gin.Context) {
	err := h.chat.CloseSession(c.Request.Context(), c.Param("id"))
	if errors.Is(err, chat.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to close session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.chat.SubmitFeedback(c.Request.Context(), &req)
	if !resp.Success {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// IdeaResponse pairs an idea with its score and threshold verdict.
type IdeaResponse struct {
	Idea            *models.Idea     `json:"idea"`
	Score           models.IdeaScore `json:"score"`
	PassesThreshold bool             `json:"passes_threshold"`
}

// scoreAndAdmit scores an idea and admits passing ideas to the cache.
func (h *Handler) scoreAndAdmit(c *gin.Context, idea *models.Idea) (*IdeaResponse, error) {
	score, err := h.engine.Score(c.Request.Context(), idea)
	if err != nil {
		return nil, err
	}
	passes := h.engine.PassesThreshold(score)
	if passes {
		h.cache.Put(idea, score)
	}
	return &IdeaResponse{Idea: idea, Score: score, PassesThreshold: passes}, nil
}

func (h *Handler) ListIdeas(c *gin.Context) {
	scored := h.cache.Recent(50)
	c.JSON(http.StatusOK, gin.H{"ideas": scored, "count": len(scored)})
}

func (h *Handler) CreateManualIdea(c *gin.Context) {
	var req struct {
		Title      string   `json:"title" binding:"required"`
		Content    string   `json:"content" binding:"required"`
		SourceName string   `json:"source_name"`
		Tags       []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	idea := models.NewIdea(req.Title, req.Content, models.SourceManual)
	idea.SourceName = req.SourceName
	if idea.SourceName == "" {
		idea.SourceName = "Manual Entry"
	}
	idea.Tags = req.Tags

	resp, err := h.scoreAndAdmit(c, idea)
	if err != nil {
		h.logger.Error("Failed to score idea", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score idea"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ApproveIdea acknowledges approval of an idea.
// TODO: persist the decision once ideas move out of the cache into the store.
func (h *Handler) ApproveIdea(c *gin.Context) {
	ideaID := c.Param("id")
	h.logger.Info("Idea approved", zap.String("idea_id", ideaID))
	c.JSON(http.StatusOK, gin.H{"message": "Idea approved", "idea_id": ideaID})
}

// RejectIdea acknowledges rejection of an idea with an optional reason.
func (h *Handler) RejectIdea(c *gin.Context) {
	ideaID := c.Param("id")
	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	reason := req.Reason
	if reason == "" {
		reason = "Not specified"
	}
	h.logger.Info("Idea rejected",
		zap.String("idea_id", ideaID),
		zap.String("reason", reason))
	c.JSON(http.StatusOK, gin.H{"message": "Idea rejected", "idea_id": ideaID, "reason": reason})
}

func (h *Handler) IngestURL(c *gin.Context) {
	var req struct {
		URL        string `json:"url" binding:"required"`
		SourceName string `json:"source_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := h.ingest.IngestURL(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Error("Failed to ingest URL", zap.Error(err), zap.String("url", req.URL))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	idea := models.NewIdea(content.Title, content.Content, models.SourceURL)
	idea.SourceURL = content.URL
	idea.SourceName = req.SourceName
	if idea.SourceName == "" {
		idea.SourceName = content.URL
	}

	resp, err := h.scoreAndAdmit(c, idea)
	if err != nil {
		h.logger.Error("Failed to score idea", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score idea"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) IngestRSS(c *gin.Context) {
	var req struct {
		FeedURL    string `json:"feed_url" binding:"required"`
		MaxEntries int    `json:"max_entries"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxEntries <= 0 || req.MaxEntries > 50 {
		req.MaxEntries = h.maxEntries
	}

	entries, err := h.ingest.IngestRSS(c.Request.Context(), req.FeedURL, req.MaxEntries)
	if err != nil {
		h.logger.Error("Failed to ingest RSS feed", zap.Error(err), zap.String("feed_url", req.FeedURL))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*IdeaResponse, 0, len(entries))
	for _, entry := range entries {
		idea := models.NewIdea(entry.Title, entry.Content, models.SourceRSS)
		idea.SourceURL = entry.URL
		idea.SourceName = req.FeedURL

		resp, err := h.scoreAndAdmit(c, idea)
		if err != nil {
			h.logger.Error("Failed to score idea", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score idea"})
			return
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, responses)
}

func (h *Handler) IngestYouTube(c *gin.Context) {
	var req struct {
		VideoID string `json:"video_id" binding:"required,len=11"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := h.ingest.IngestYouTube(c.Request.Context(), req.VideoID)
	if err != nil {
		h.logger.Error("Failed to ingest YouTube video", zap.Error(err), zap.String("video_id", req.VideoID))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	idea := models.NewIdea(content.Title, content.Content, models.SourceYouTube)
	idea.SourceURL = content.URL
	idea.SourceName = "YouTube: " + req.VideoID

	resp, err := h.scoreAndAdmit(c, idea)
	if err != nil {
		h.logger.Error("Failed to score idea", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score idea"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}
