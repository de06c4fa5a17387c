package chat

import (
	"context"
	"strings"

	"github.com/pot-code/lesson-tutor/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// FallbackMessage broadcast in place of a reply when the completion fails
const FallbackMessage = "Error: Could not fetch AI response."

// Broadcaster delivers a message to every connected client
type Broadcaster interface {
	Broadcast(msg Message)
}

// Dispatcher consumes the text of an inbound chat message
type Dispatcher interface {
	Dispatch(ctx context.Context, text string)
}

// Relay forwards chat messages to a Completer and broadcasts the reply
type Relay struct {
	completer   Completer
	broadcaster Broadcaster
}

var _ Dispatcher = &Relay{}

func NewRelay(completer Completer, broadcaster Broadcaster) *Relay {
	return &Relay{completer, broadcaster}
}

// Dispatch blocks for the completion, then broadcasts exactly one response.
// Blank messages are dropped.
func (r *Relay) Dispatch(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	span, ctx := apm.StartSpan(ctx, "Completer.Complete", "external")
	outcome := r.completer.Complete(ctx, text)
	span.End()

	reply := outcome.Text
	if !outcome.OK() {
		logging.ExtractLoggerFromContext(ctx).Warn("chat completion failed",
			zap.String("chat.failure", string(outcome.Reason)),
			zap.Error(outcome.Err))
		reply = FallbackMessage
	}
	r.broadcaster.Broadcast(Message{
		Type: MessageTypeResponse,
		Data: &MessagePayload{Message: reply},
	})
}
