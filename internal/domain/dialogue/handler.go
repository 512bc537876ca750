package dialogue

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type Handler struct {
	registry *Registry
	engine   *Engine
}

func NewHandler(registry *Registry, engine *Engine) *Handler {
	return &Handler{registry: registry, engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat", h.Chat)
	api.GET("/chat/:session_id/history", h.History)
}

func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	sess := h.registry.Resolve(req.SessionID)
	reply := h.engine.Process(c.Request().Context(), sess, req.Message)

	return c.JSON(http.StatusOK, ChatResponse{
		SessionID: sess.ID,
		Message:   reply,
		Timestamp: time.Now().Format(timestampFormat),
	})
}

func (h *Handler) History(c echo.Context) error {
	sess, ok := h.registry.Lookup(c.Param("session_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sess.TranscriptSnapshot())
}
