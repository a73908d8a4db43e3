package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/golang-jwt/jwt/v5"
	plaidgo "github.com/plaid/plaid-go/v41/plaid"
)

var ErrInvalidWebhook = errors.New("invalid Plaid webhook")

const (
	verificationHeader = "Plaid-Verification"
	maxWebhookAge      = 5 * time.Minute
	keyTTL             = 24 * time.Hour
)

// KeyFetcher returns the verification key for a key id.
type KeyFetcher func(ctx context.Context, kid string) (*plaidgo.JWKPublicKey, error)

func APIKeyFetcher(api *plaidgo.APIClient) KeyFetcher {
	return func(ctx context.Context, kid string) (*plaidgo.JWKPublicKey, error) {
		req := plaidgo.NewWebhookVerificationKeyGetRequest(kid)
		resp, _, err := api.PlaidApi.WebhookVerificationKeyGet(ctx).
			WebhookVerificationKeyGetRequest(*req).
			Execute()
		if err != nil {
			return nil, err
		}
		key := resp.GetKey()
		return &key, nil
	}
}

// Verifier checks the signed JWT Plaid attaches to every webhook.
type Verifier struct {
	fetch KeyFetcher
	keys  *ristretto.Cache
	now   func() time.Time
}

func NewVerifier(fetch KeyFetcher) (*Verifier, error) {
	keys, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Verifier{fetch: fetch, keys: keys, now: time.Now}, nil
}

func (v *Verifier) Close() { v.keys.Close() }

func (v *Verifier) Verify(ctx context.Context, body []byte, header http.Header) error {
	tokenString := header.Get(verificationHeader)
	if tokenString == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidWebhook, verificationHeader)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30*time.Second),
	)
	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodES256.Alg() {
		return fmt.Errorf("%w: unexpected alg %q", ErrInvalidWebhook, unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return fmt.Errorf("%w: missing kid", ErrInvalidWebhook)
	}

	pub, err := v.key(ctx, kid)
	if err != nil {
		return err
	}

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fmt.Errorf("%w: missing iat", ErrInvalidWebhook)
	}
	if v.now().Sub(iat.Time) > maxWebhookAge {
		return fmt.Errorf("%w: token older than %s", ErrInvalidWebhook, maxWebhookAge)
	}

	wantHash, _ := claims["request_body_sha256"].(string)
	if wantHash == "" {
		return fmt.Errorf("%w: missing request_body_sha256", ErrInvalidWebhook)
	}
	sum := sha256.Sum256(body)
	got := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(wantHash))) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidWebhook)
	}
	return nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	if cached, ok := v.keys.Get(kid); ok {
		if pub, ok := cached.(*ecdsa.PublicKey); ok {
			return pub, nil
		}
	}
	jwk, err := v.fetch(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetch verification key %s: %w", kid, err)
	}
	pub, err := publicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	if jwk.Kid == kid {
		v.keys.SetWithTTL(kid, pub, 1, keyTTL)
		v.keys.Wait()
	}
	return pub, nil
}

func publicKey(jwk *plaidgo.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.X == "" || jwk.Y == "" || jwk.Kty != "EC" || jwk.Crv != "P-256" {
		return nil, errors.New("unsupported JWK")
	}
	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}
