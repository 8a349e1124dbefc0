// Package webhook receives LINE Messaging API callbacks and answers text
// messages through the responder.
package webhook

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	linehook "github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"go.uber.org/zap"

	"keyword_responder/internal/metrics"
	"keyword_responder/internal/responder"
)

// Responder produces at most one reply for an inbound message.
type Responder interface {
	OnIncomingText(ctx context.Context, msg responder.Message) (string, bool)
}

// Handler serves POST /callback.
type Handler struct {
	channelSecret string
	responder     Responder
	sender        Sender
	defaultReply  string
	logger        *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaultReply sets the text sent for unmatched one-to-one messages.
// Empty keeps them unanswered.
func WithDefaultReply(text string) Option {
	return func(h *Handler) { h.defaultReply = text }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler returns a callback handler verifying signatures with
// channelSecret.
func NewHandler(channelSecret string, r Responder, s Sender, opts ...Option) *Handler {
	h := &Handler{
		channelSecret: channelSecret,
		responder:     r,
		sender:        s,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the callback route.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/callback", h.Callback)
}

// Callback verifies and dispatches one webhook delivery.
func (h *Handler) Callback(c echo.Context) error {
	cb, err := linehook.ParseRequest(h.channelSecret, c.Request())
	if err != nil {
		if errors.Is(err, linehook.ErrInvalidSignature) {
			h.logger.Warn("invalid webhook signature")
			return c.NoContent(http.StatusBadRequest)
		}
		h.logger.Error("failed to parse webhook request", zap.Error(err))
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		h.handleEvent(ctx, event)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) handleEvent(ctx context.Context, event linehook.EventInterface) {
	e, ok := event.(linehook.MessageEvent)
	if !ok {
		return
	}
	text, ok := e.Message.(linehook.TextMessageContent)
	if !ok {
		return
	}

	msg := toMessage(text.Text, e.Source)
	reply, ok := h.responder.OnIncomingText(ctx, msg)
	if !ok {
		if msg.IsGroup || h.defaultReply == "" {
			return
		}
		reply = h.defaultReply
	}

	if err := h.sender.Reply(ctx, e.ReplyToken, reply); err != nil {
		metrics.RepliesSent.WithLabelValues("error").Inc()
		h.logger.Error("failed to send reply",
			zap.String("chat_id", msg.ChatID),
			zap.Error(err),
		)
		return
	}
	metrics.RepliesSent.WithLabelValues("ok").Inc()
}

func toMessage(text string, source linehook.SourceInterface) responder.Message {
	msg := responder.Message{RawText: text}
	switch s := source.(type) {
	case linehook.UserSource:
		msg.ChatID, msg.UserID = s.UserId, s.UserId
	case linehook.GroupSource:
		msg.IsGroup = true
		msg.ChatID, msg.UserID = s.GroupId, s.UserId
	case linehook.RoomSource:
		msg.IsGroup = true
		msg.ChatID, msg.UserID = s.RoomId, s.UserId
	}
	return msg
}
