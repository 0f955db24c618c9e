package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamchat/internal/render"
	"streamchat/internal/service"
	"streamchat/internal/stream"
)

// ChatHandler expone ChatActions por HTTP y el stream de cada turno por SSE.
type ChatHandler struct {
	logger  *zap.Logger
	actions *service.ChatActions
}

func NewChatHandler(logger *zap.Logger, actions *service.ChatActions) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		actions: actions,
	}
}

// turnEvent es el payload de snapshot y de cada evento SSE.
type turnEvent struct {
	TurnID string      `json:"turn_id"`
	ChatID string      `json:"chat_id"`
	Seq    int         `json:"seq"`
	Kind   stream.Kind `json:"kind"`
	Text   string      `json:"text"`
	HTML   string      `json:"html,omitempty"`
}

func newTurnEvent(h *stream.Handle, u stream.Update) turnEvent {
	ev := turnEvent{
		TurnID: h.ID(),
		ChatID: h.ChatID(),
		Seq:    u.Seq,
		Kind:   u.Kind,
		Text:   u.Text,
	}
	if u.Kind == stream.KindContent || u.Kind == stream.KindDone {
		ev.HTML = render.Markdown(u.Text)
	}
	return ev
}

// PostMessage maneja POST /chat/messages. content es obligatorio pero puede ser vacio.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content *string `json:"content"`
		Model   string  `json:"model"`
		ChatID  string  `json:"chat_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, handle, err := h.actions.Submit(c.Request.Context(), *req.Content, req.Model, req.ChatID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, res)
		return
	case errors.Is(err, service.ErrTurnInFlight):
		c.JSON(http.StatusConflict, res)
		return
	case err != nil:
		h.logger.Error("submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, res)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"result": res,
		"turn":   newTurnEvent(handle, handle.Snapshot()),
	})
}

// GetTurn maneja GET /chat/turns/:turnID y devuelve el ultimo update.
func (h *ChatHandler) GetTurn(c *gin.Context) {
	handle, ok := h.lookupTurn(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTurnEvent(handle, handle.Snapshot()))
}

// StreamTurn maneja GET /chat/turns/:turnID/stream. Emite el update actual y los siguientes
// hasta el evento final o hasta que el cliente se desconecta.
func (h *ChatHandler) StreamTurn(c *gin.Context) {
	handle, ok := h.lookupTurn(c)
	if !ok {
		return
	}

	updates, cancel := handle.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case u, open := <-updates:
			if !open {
				return
			}
			c.SSEvent(string(u.Kind), newTurnEvent(handle, u))
			c.Writer.Flush()
			if u.Final() {
				return
			}
		case <-ctx.Done():
			h.logger.Debug("stream client gone", zap.String("turn_id", handle.ID()))
			return
		}
	}
}

func (h *ChatHandler) lookupTurn(c *gin.Context) (*stream.Handle, bool) {
	handle, err := h.actions.Turn(c.Request.Context(), c.Param("turnID"))
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, false
	case errors.Is(err, service.ErrTurnNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "turn not found"})
		return nil, false
	case err != nil:
		h.logger.Error("turn lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load turn"})
		return nil, false
	}
	return handle, true
}

// LoadHistory maneja GET /chats/:chatID/history.
func (h *ChatHandler) LoadHistory(c *gin.Context) {
	displayName := strings.TrimSpace(c.Query("display_name"))
	if displayName == "" {
		if claims, ok := GetAuthClaims(c); ok {
			displayName = claims.DisplayName
		}
	}
	c.JSON(http.StatusOK, h.actions.LoadHistory(c.Request.Context(), displayName, c.Param("chatID")))
}

// ResetChat maneja POST /chats/:chatID/reset.
func (h *ChatHandler) ResetChat(c *gin.Context) {
	res := h.actions.Reset(c.Request.Context(), c.Param("chatID"))
	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListChats maneja GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.actions.ListChats(c.Request.Context())
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("list chats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// DeleteChat maneja DELETE /chats/:chatID.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	err := h.actions.DeleteChat(c.Request.Context(), c.Param("chatID"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrChatIDEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, service.ErrTurnInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "turn in flight"})
	default:
		h.logger.Error("delete chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete chat"})
	}
}
