// Package verify issues and checks phone-number verification codes.
// Codes travel to the user over the provider channel only; no API
// response ever carries one.
package verify

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"chatline/internal/provider"
)

// TTL is how long an issued code stays valid.
const TTL = 10 * time.Minute

// messageTemplate is the text sent to the user's phone.
const messageTemplate = "Tu código de verificación de WhatsApp es %s. No lo compartas con nadie."

// Store holds issued codes with expiry. Consume is check-and-delete: a
// code matches at most once.
type Store interface {
	Put(ctx context.Context, phoneKey, code string, ttl time.Duration) error
	Consume(ctx context.Context, phoneKey, code string) (bool, error)
}

// GenerateCode returns a 6 digit numeric code from a cryptographic
// source.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Service issues codes and dispatches them through the provider.
type Service struct {
	store    Store
	dispatch provider.Dispatcher
	logger   *zap.Logger
}

// NewService creates a verification service.
func NewService(store Store, d provider.Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, dispatch: d, logger: logger}
}

// SendCode generates a fresh code for phoneKey, stores it, and sends it
// to the phone. Only the provider SID is returned; the code itself
// never leaves the service except through the provider channel.
func (s *Service) SendCode(ctx context.Context, phoneKey string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, phoneKey, code, TTL); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	sid, err := s.dispatch.SendText(ctx, phoneKey, fmt.Sprintf(messageTemplate, code))
	if err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	s.logger.Info("verification code sent", zap.String("phone_key", phoneKey), zap.String("sid", sid))
	return sid, nil
}

// VerifyCode checks a submitted code. A match consumes the stored code.
func (s *Service) VerifyCode(ctx context.Context, phoneKey, code string) (bool, error) {
	return s.store.Consume(ctx, phoneKey, code)
}
