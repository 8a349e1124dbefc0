// Package responder decides what, if anything, to send back for one inbound
// text message: the moderation warning for flagged group messages, otherwise
// the reply resolved from the keyword table.
package responder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"keyword_responder/internal/metrics"
	"keyword_responder/internal/moderation"
	"keyword_responder/internal/notify"
	"keyword_responder/internal/replies"
)

// Message is an inbound text message with its conversation context.
type Message struct {
	RawText string
	IsGroup bool
	ChatID  string
	UserID  string
}

// Resolver looks up a reply for raw text.
type Resolver interface {
	ResolveMatch(rawText string) (replies.Match, bool)
}

// Responder wires moderation and reply resolution together.
type Responder struct {
	gate     *moderation.Gate
	resolver Resolver
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithNotifier sets where moderation events are published.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Responder) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Responder) { r.logger = logger }
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

// New returns a Responder. A nil gate disables moderation.
func New(gate *moderation.Gate, resolver Resolver, opts ...Option) *Responder {
	if gate == nil {
		gate = moderation.NewGate(nil)
	}
	r := &Responder{
		gate:     gate,
		resolver: resolver,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnIncomingText returns the single reply for msg, if any. It never fails:
// a missing or broken table means no reply.
func (r *Responder) OnIncomingText(ctx context.Context, msg Message) (string, bool) {
	started := time.Now()

	action := r.gate.Handle(msg.RawText, msg.IsGroup)
	if action.Verdict == moderation.SendWarning {
		r.logger.Info("moderation warning",
			zap.String("chat_id", msg.ChatID),
			zap.String("user_id", msg.UserID),
			zap.String("term", action.Term),
		)
		if action.NotifyAdmin {
			r.publish(ctx, msg, action.Term)
		}
		metrics.ObserveResolve("warning", "", started)
		return action.Warning, true
	}

	match, ok := r.resolver.ResolveMatch(msg.RawText)
	if !ok {
		r.logger.Debug("no reply", zap.String("chat_id", msg.ChatID))
		metrics.ObserveResolve("none", "", started)
		return "", false
	}

	r.logger.Debug("reply resolved",
		zap.String("chat_id", msg.ChatID),
		zap.String("layer", string(match.Layer)),
		zap.String("key", match.Key),
	)
	metrics.ObserveResolve("reply", string(match.Layer), started)
	return match.Reply, true
}

func (r *Responder) publish(ctx context.Context, msg Message, term string) {
	ev := notify.Event{
		ChatID: msg.ChatID,
		UserID: msg.UserID,
		Text:   msg.RawText,
		Term:   term,
		Ts:     r.now().Unix(),
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.logger.Warn("moderation notify failed", zap.Error(err))
	}
}
