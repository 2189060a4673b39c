// Package contacts resolves a user's delivery addresses.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
)

const resolveTimeout = 2 * time.Second

// Resolver returns the contact points for a user.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (domain.UserContacts, error)
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	PushToken   string `json:"push_token"`
	WSSessionID string `json:"ws_session_id"`
}

// HTTPResolver fetches contacts from the auth service.
type HTTPResolver struct {
	client *resty.Client
}

func NewHTTPResolver(baseURL string) (*HTTPResolver, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(resolveTimeout)

	return &HTTPResolver{client: client}, nil
}

func (r *HTTPResolver) Resolve(ctx context.Context, userID string) (domain.UserContacts, error) {
	var user userResponse

	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/api/v1/users/" + userID)
	if err != nil {
		return domain.UserContacts{}, fmt.Errorf("resolve contacts for %s: %w", userID, err)
	}

	if resp.IsError() {
		return domain.UserContacts{}, fmt.Errorf("resolve contacts for %s: auth service returned %d", userID, resp.StatusCode())
	}

	return domain.UserContacts{
		UserID:      userID,
		Email:       user.Email,
		PushToken:   user.PushToken,
		WSSessionID: user.WSSessionID,
	}, nil
}

// FallbackResolver wraps another resolver and substitutes deterministic
// synthetic contacts when resolution fails, so delivery keeps flowing while
// the auth service is down.
type FallbackResolver struct {
	inner  Resolver
	logger *zap.Logger
}

func NewFallbackResolver(inner Resolver, logger *zap.Logger) (*FallbackResolver, error) {
	if inner == nil {
		return nil, errors.New("inner resolver is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &FallbackResolver{inner: inner, logger: logger}, nil
}

func (r *FallbackResolver) Resolve(ctx context.Context, userID string) (domain.UserContacts, error) {
	contacts, err := r.inner.Resolve(ctx, userID)
	if err == nil {
		return contacts, nil
	}

	r.logger.Warn("contact resolution failed, using synthetic contacts",
		zap.String("userId", userID),
		zap.Error(err))

	return SyntheticContacts(userID), nil
}

// SyntheticContacts derives placeholder contact points from the user id.
func SyntheticContacts(userID string) domain.UserContacts {
	return domain.UserContacts{
		UserID:      userID,
		Email:       fmt.Sprintf("user-%s@example.com", userID),
		PushToken:   "push-" + userID,
		WSSessionID: "ws-" + userID,
	}
}
