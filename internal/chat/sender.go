package chat

import (
	"context"
	"fmt"
	"time"

	apperrors "convox-bot/internal/errors"
	"convox-bot/internal/logging"
)

const (
	DefaultRetries    = 2
	DefaultRetryDelay = time.Second
)

// Sender delivers bot replies with a bounded number of retries. Final
// failures are logged through a throttle and never returned to the user.
type Sender struct {
	transport Transport
	retries   int
	delay     time.Duration
	throttle  *logging.Throttle
}

// NewSender wraps a transport with the retry policy
func NewSender(transport Transport, retries int, delay time.Duration, throttle *logging.Throttle) *Sender {
	if retries < 0 {
		retries = DefaultRetries
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &Sender{
		transport: transport,
		retries:   retries,
		delay:     delay,
		throttle:  throttle,
	}
}

// Transport returns the underlying transport
func (s *Sender) Transport() Transport {
	return s.transport
}

// Send delivers text and returns the message ID. ok is false when every
// attempt failed.
func (s *Sender) Send(ctx context.Context, conversationID, text string) (messageID string, ok bool) {
	messageID, err := s.SendErr(ctx, conversationID, text)
	if err != nil {
		if s.throttle != nil {
			s.throttle.Warn(ctx, "send_message_error", "send message failed",
				"conversation_id", conversationID,
				"retryable", apperrors.IsRetryable(err),
				"error", err,
			)
		}
		return "", false
	}
	return messageID, true
}

// SendErr is Send without the logging, for callers that need the cause
func (s *Sender) SendErr(ctx context.Context, conversationID, text string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		id, err := s.transport.SendMessage(ctx, conversationID, text)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if attempt == s.retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(fmt.Errorf("send cancelled: %w", ctx.Err()), apperrors.KindTransientDelivery, "", true)
		case <-time.After(s.delay):
		}
	}
	return "", apperrors.Wrap(
		fmt.Errorf("%w after %d attempts: %v", apperrors.ErrDeliveryFailed, s.retries+1, lastErr),
		apperrors.KindTransientDelivery, "", true,
	)
}

// Reply is Send for callers that do not need the message ID
func (s *Sender) Reply(ctx context.Context, conversationID, text string) {
	s.Send(ctx, conversationID, text)
}
