package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/domain/service"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// SignerConfig carries the identifiers embedded in every credential.
type SignerConfig struct {
	TeamID   string
	KeyID    string
	Validity time.Duration
}

// credentialHeader and credentialClaims are marshalled with a fixed field
// order; the gateway accepts any order but deterministic output keeps
// credentials reproducible under a fixed clock.
type credentialHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

type credentialClaims struct {
	Iss string `json:"iss"`
	Iat int64  `json:"iat"`
}

// Signer produces and caches the ES256 provider credential.
// Signer is not safe for concurrent use; callers serialize access.
type Signer struct {
	cfg     SignerConfig
	keys    KeySource
	logger  logger.Logger
	metrics service.Metrics
	now     func() time.Time
	rand    io.Reader

	cached models.Credential
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// WithRand replaces the random source used for ECDSA nonces.
func WithRand(r io.Reader) SignerOption {
	return func(s *Signer) { s.rand = r }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m service.Metrics) SignerOption {
	return func(s *Signer) { s.metrics = m }
}

// NewSigner creates a Signer. A zero validity falls back to the gateway's
// one-hour limit minus a safety margin.
func NewSigner(cfg SignerConfig, keys KeySource, log logger.Logger, opts ...SignerOption) *Signer {
	if cfg.Validity <= 0 {
		cfg.Validity = constants.CredentialValidity
	}
	s := &Signer{
		cfg:     cfg,
		keys:    keys,
		logger:  log.WithComponent("credential_signer"),
		metrics: service.NewNoopMetrics(),
		now:     time.Now,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureValid returns the cached credential while it is inside the validity
// window and generates a new one otherwise.
func (s *Signer) EnsureValid(ctx context.Context) (models.Credential, error) {
	now := s.now()
	if s.cached.ValidAt(now, s.cfg.Validity) {
		return s.cached, nil
	}

	token, err := s.generate(ctx, now)
	s.metrics.RecordCredentialRefresh(err == nil)
	if err != nil {
		s.logger.Error(ctx, "credential generation failed", err)
		return models.Credential{}, err
	}

	s.cached = models.Credential{Token: token, GeneratedAt: now}
	s.logger.Info(ctx, "credential regenerated", logger.String("key_id", s.cfg.KeyID))
	return s.cached, nil
}

// Invalidate drops the cached credential so the next call regenerates it.
func (s *Signer) Invalidate() {
	s.cached = models.Credential{}
}

func (s *Signer) generate(ctx context.Context, now time.Time) (string, error) {
	pemBytes, err := s.keys.Load(ctx)
	if err != nil {
		return "", err
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return "", errors.Wrap(errors.ErrKeyParse, err, "")
	}
	if key.Curve != elliptic.P256() {
		return "", errors.ErrKeyParse.WithMessage("signing key is not on curve P-256")
	}

	header, err := json.Marshal(credentialHeader{Alg: constants.CredentialAlgorithm, Kid: s.cfg.KeyID})
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, err, "encode credential header")
	}
	claims, err := json.Marshal(credentialClaims{Iss: s.cfg.TeamID, Iat: now.Unix()})
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, err, "encode credential claims")
	}

	signingInput := base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signingInput))

	der, err := ecdsa.SignASN1(s.rand, key, digest[:])
	if err != nil {
		return "", errors.Wrap(errors.ErrRandomSource, err, "")
	}
	raw, err := DERToRaw(der)
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
