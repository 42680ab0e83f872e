package crypto_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pushgate/internal/infrastructure/crypto"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

type staticKeySource struct {
	pem   []byte
	err   error
	loads int
}

func (s *staticKeySource) Load(ctx context.Context) ([]byte, error) {
	s.loads++
	return s.pem, s.err
}

func newKeyPEM(t *testing.T, curve elliptic.Curve) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSigner(t *testing.T, src crypto.KeySource, clock *fakeClock) *crypto.Signer {
	t.Helper()
	cfg := crypto.SignerConfig{TeamID: "TEAM123456", KeyID: "KEY1234567", Validity: 3300 * time.Second}
	return crypto.NewSigner(cfg, src, logger.NewNoopLogger(), crypto.WithClock(clock.Now))
}

func TestSigner_CredentialVerifiesAsES256(t *testing.T) {
	key, keyPEM := newKeyPEM(t, elliptic.P256())
	clock := &fakeClock{t: time.Now()}
	signer := newSigner(t, &staticKeySource{pem: keyPEM}, clock)

	cred, err := signer.EnsureValid(context.Background())
	require.NoError(t, err)

	parsed, err := jwt.Parse(cred.Token, func(tok *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "KEY1234567", parsed.Header["kid"])

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "TEAM123456", claims["iss"])
	assert.Equal(t, float64(clock.t.Unix()), claims["iat"])
}

func TestSigner_WireFormat(t *testing.T) {
	key, keyPEM := newKeyPEM(t, elliptic.P256())
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	signer := newSigner(t, &staticKeySource{pem: keyPEM}, clock)

	cred, err := signer.EnsureValid(context.Background())
	require.NoError(t, err)

	parts := strings.Split(cred.Token, ".")
	require.Len(t, parts, 3)
	assert.NotContains(t, cred.Token, "=")

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Equal(t, `{"alg":"ES256","kid":"KEY1234567"}`, string(header))

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Equal(t, `{"iss":"TEAM123456","iat":1700000000}`, string(payload))

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)

	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	assert.True(t, ecdsa.Verify(&key.PublicKey, digest[:], r, s))
}

func TestSigner_CachesWithinValidityWindow(t *testing.T) {
	_, keyPEM := newKeyPEM(t, elliptic.P256())
	src := &staticKeySource{pem: keyPEM}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	signer := newSigner(t, src, clock)
	ctx := context.Background()

	first, err := signer.EnsureValid(ctx)
	require.NoError(t, err)

	clock.Advance(3299 * time.Second)
	second, err := signer.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.loads)

	clock.Advance(time.Second)
	third, err := signer.EnsureValid(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, third.Token)
	assert.Equal(t, clock.t, third.GeneratedAt)
	assert.Equal(t, 2, src.loads)
}

func TestSigner_InvalidateForcesRegeneration(t *testing.T) {
	_, keyPEM := newKeyPEM(t, elliptic.P256())
	src := &staticKeySource{pem: keyPEM}
	signer := newSigner(t, src, &fakeClock{t: time.Unix(1700000000, 0)})
	ctx := context.Background()

	_, err := signer.EnsureValid(ctx)
	require.NoError(t, err)
	signer.Invalidate()
	_, err = signer.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}

func TestSigner_KeyErrors(t *testing.T) {
	_, p384PEM := newKeyPEM(t, elliptic.P384())

	tests := []struct {
		name string
		src  *staticKeySource
		want errors.AppError
	}{
		{"garbage pem", &staticKeySource{pem: []byte("not a key")}, errors.ErrKeyParse},
		{"wrong curve", &staticKeySource{pem: p384PEM}, errors.ErrKeyParse},
		{"source failure", &staticKeySource{err: errors.ErrKeySource.WithMessage("gone")}, errors.ErrKeySource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := newSigner(t, tt.src, &fakeClock{t: time.Now()})
			cred, err := signer.EnsureValid(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, cred.IsZero())
		})
	}
}

func TestSigner_HeaderFieldOrder(t *testing.T) {
	_, keyPEM := newKeyPEM(t, elliptic.P256())
	signer := newSigner(t, &staticKeySource{pem: keyPEM}, &fakeClock{t: time.Unix(1, 0)})

	cred, err := signer.EnsureValid(context.Background())
	require.NoError(t, err)

	header, err := base64.RawURLEncoding.DecodeString(strings.Split(cred.Token, ".")[0])
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(header, &decoded))
	assert.Equal(t, map[string]string{"alg": "ES256", "kid": "KEY1234567"}, decoded)
}
