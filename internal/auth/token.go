package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Session tokens carry this private claim so a JWT minted for another purpose
// with the same secret is never accepted as an admin session.
const (
	scopeClaim   = "scope"
	sessionScope = "admin_session"
)

// sessionTokens signs and verifies the HS256 admin session JWT stored in the
// session cookie.
type sessionTokens struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	ttl      time.Duration
}

func (t sessionTokens) sign(adminID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	tok, err := jwt.NewBuilder().
		Subject(adminID).
		Issuer(t.issuer).
		Audience([]string{t.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-t.skew)).
		Expiration(expiresAt).
		Claim(scopeClaim, sessionScope).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// parse verifies raw at now and returns the admin id in its subject.
func (t sessionTokens) parse(raw string, now time.Time) (string, error) {
	alg, err := signingAlgorithm(raw)
	if err != nil {
		return "", err
	}
	if alg != jwa.HS256 {
		return "", fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	tok, err := jwt.ParseString(raw, jwt.WithKey(jwa.HS256, t.secret), jwt.WithValidate(false))
	if err != nil {
		return "", err
	}
	if err := t.validate(tok, now); err != nil {
		return "", err
	}
	return tok.Subject(), nil
}

func (t sessionTokens) validate(tok jwt.Token, now time.Time) error {
	if strings.TrimSpace(tok.Subject()) == "" {
		return errors.New("auth: token missing subject")
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithClaimValue(scopeClaim, sessionScope),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
	}
	if t.skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(t.skew))
	}
	return jwt.Validate(tok, opts...)
}

// signingAlgorithm reads the alg header without verifying the signature.
func signingAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	hdr := sigs[0].ProtectedHeaders()
	if hdr == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	switch alg := hdr.Algorithm(); alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	default:
		return alg, nil
	}
}
