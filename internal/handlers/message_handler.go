package handlers

import (
	"errors"
	"net/http"
	"strings"

	"chat-realtime-api/internal/middleware"
	"chat-realtime-api/internal/models"
	"chat-realtime-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SendMessageRequest is the body of POST /api/messages/send/:id. Image is an
// opaque reference (URL or data URI); uploads are handled elsewhere.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type MessageHandler struct {
	messages MessageStore
	users    UserStore
	log      *zap.Logger
}

func NewMessageHandler(messages MessageStore, users UserStore, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, users: users, log: log}
}

// GetMessages handles GET /api/messages/:id
// Returns the history between the authenticated user and :id, oldest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	partnerID := strings.TrimSpace(c.Param("id"))
	if partnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Partner id is required"})
		return
	}

	msgs, err := h.messages.Conversation(c.Request.Context(), userID, partnerID)
	if err != nil {
		h.log.Error("fetch conversation failed", zap.String("partner_id", partnerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage handles POST /api/messages/send/:id
// Persists one message and returns the stored record. Live delivery is
// triggered separately by the client over the websocket.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	receiverID := strings.TrimSpace(c.Param("id"))
	if receiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receiver id is required"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message payload"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must have text or an image"})
		return
	}

	if _, err := h.users.UserByID(c.Request.Context(), receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Receiver not found"})
			return
		}
		h.log.Error("receiver lookup failed", zap.String("receiver_id", receiverID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	msg := models.Message{
		SenderID:   userID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      req.Image,
	}
	if err := h.messages.CreateMessage(c.Request.Context(), &msg); err != nil {
		h.log.Error("save message failed", zap.String("receiver_id", receiverID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}
