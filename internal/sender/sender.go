// Package sender delivers rendered notifications over a channel transport.
package sender

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
)

// Sender delivers a single rendered message to one address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Registry maps channels to their senders.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	email, err := NewEmailSender(logger)
	if err != nil {
		return nil, err
	}

	push, err := NewPushSender(logger)
	if err != nil {
		return nil, err
	}

	ws, err := NewWebSocketSender(logger)
	if err != nil {
		return nil, err
	}

	return &Registry{
		senders: map[domain.Channel]Sender{
			domain.ChannelEmail:     email,
			domain.ChannelPush:      push,
			domain.ChannelWebSocket: ws,
		},
	}, nil
}

// ForChannel picks the sender for a channel. Channels without a transport,
// sms included, are an error.
func (r *Registry) ForChannel(channel domain.Channel) (Sender, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return nil, fmt.Errorf("no sender for channel %s: %w", channel, domain.ErrValidation)
	}

	return sender, nil
}

// EmailSender logs the message in place of a real SMTP integration.
type EmailSender struct {
	logger *zap.Logger
}

func NewEmailSender(logger *zap.Logger) (*EmailSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EmailSender{logger: logger}, nil
}

func (s *EmailSender) Send(_ context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("empty email address: %w", domain.ErrValidation)
	}

	s.logger.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("bodyLength", len(body)))

	return nil
}

// PushSender logs the message in place of a real push gateway.
type PushSender struct {
	logger *zap.Logger
}

func NewPushSender(logger *zap.Logger) (*PushSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PushSender{logger: logger}, nil
}

func (s *PushSender) Send(_ context.Context, to, _, body string) error {
	if to == "" {
		return fmt.Errorf("empty push token: %w", domain.ErrValidation)
	}

	s.logger.Info("push notification sent",
		zap.String("token", to),
		zap.Int("bodyLength", len(body)))

	return nil
}

// WebSocketSender logs the message in place of a real websocket hub.
type WebSocketSender struct {
	logger *zap.Logger
}

func NewWebSocketSender(logger *zap.Logger) (*WebSocketSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebSocketSender{logger: logger}, nil
}

func (s *WebSocketSender) Send(_ context.Context, to, _, body string) error {
	if to == "" {
		return fmt.Errorf("empty websocket session: %w", domain.ErrValidation)
	}

	s.logger.Info("websocket message sent",
		zap.String("session", to),
		zap.Int("bodyLength", len(body)))

	return nil
}

// AddressFor picks the contact point matching the channel.
func AddressFor(channel domain.Channel, contacts domain.UserContacts) (string, error) {
	switch channel {
	case domain.ChannelEmail:
		return contacts.Email, nil
	case domain.ChannelPush:
		return contacts.PushToken, nil
	case domain.ChannelWebSocket:
		return contacts.WSSessionID, nil
	default:
		return "", errors.New("no address for channel " + string(channel))
	}
}
