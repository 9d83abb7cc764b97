// Package csrf implements stateless double-submit CSRF tokens.
//
// A token is "<random>.<expires_unix>.<mac>". The MAC binds the expiry to
// the random part so a client cannot extend a token, and lets any instance
// sharing the key validate it without server-side state.
//
// Beyond the usual missing, mismatched and expired outcomes, Validate also
// rejects an equal header and cookie pair that this issuer did not mint,
// returning ErrTokenInvalid.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
)

var (
	ErrTokenMissing  = errors.New("csrf: token missing")
	ErrTokenMismatch = errors.New("csrf: token mismatch")
	ErrTokenExpired  = errors.New("csrf: token expired")
	ErrTokenInvalid  = errors.New("csrf: token invalid")
)

// Defaults.
const (
	DefaultCookieName = "csrf_token"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultTTL        = 4 * time.Hour
)

// Config configures an Issuer.
type Config struct {
	// Key authenticates tokens. Every instance must share it.
	Key []byte

	CookieName string
	HeaderName string
	CookiePath string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite

	Now func() time.Time
}

// Token is a parsed CSRF token.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer creates and checks tokens.
type Issuer struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Issuer, error) {
	if len(cfg.Key) < 16 {
		return nil, errors.New("csrf: key must be at least 16 bytes")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// HeaderName is the request header clients must echo the token in.
func (i *Issuer) HeaderName() string { return i.cfg.HeaderName }

// CookieName is the cookie carrying the token.
func (i *Issuer) CookieName() string { return i.cfg.CookieName }

// Generate returns a fresh token.
func (i *Issuer) Generate() (Token, error) {
	random, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return Token{}, err
	}
	now := i.cfg.Now()
	exp := now.Add(i.cfg.TTL).Truncate(time.Second)
	payload := random + "." + strconv.FormatInt(exp.Unix(), 10)
	return Token{
		Value:     payload + "." + i.mac(payload),
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Parse authenticates value and checks expiry.
func (i *Issuer) Parse(value string) (Token, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 || parts[0] == "" {
		return Token{}, ErrTokenInvalid
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(i.mac(payload)), []byte(parts[2])) {
		return Token{}, ErrTokenInvalid
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, ErrTokenInvalid
	}
	exp := time.Unix(unix, 0)
	if !i.cfg.Now().Before(exp) {
		return Token{}, ErrTokenExpired
	}
	return Token{Value: value, IssuedAt: exp.Add(-i.cfg.TTL), ExpiresAt: exp}, nil
}

// IssueIfAbsent keeps a valid token from the request cookie or sets a new
// one. Either way the token is written to the response header and returned.
func (i *Issuer) IssueIfAbsent(w http.ResponseWriter, r *http.Request) (Token, error) {
	if c, err := r.Cookie(i.cfg.CookieName); err == nil && c.Value != "" {
		if tok, err := i.Parse(c.Value); err == nil {
			w.Header().Set(i.cfg.HeaderName, tok.Value)
			return tok, nil
		}
	}

	tok, err := i.Generate()
	if err != nil {
		return Token{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     i.cfg.CookieName,
		Value:    tok.Value,
		Path:     i.cfg.CookiePath,
		Expires:  tok.ExpiresAt,
		MaxAge:   int(i.cfg.TTL / time.Second),
		Secure:   i.cfg.Secure,
		HttpOnly: true,
		SameSite: i.cfg.SameSite,
	})
	w.Header().Set(i.cfg.HeaderName, tok.Value)
	return tok, nil
}

// Validate checks the double submit: header and cookie must both be present,
// equal, authentic and unexpired.
func (i *Issuer) Validate(r *http.Request) error {
	header := r.Header.Get(i.cfg.HeaderName)
	c, err := r.Cookie(i.cfg.CookieName)
	if header == "" || err != nil || c.Value == "" {
		return ErrTokenMissing
	}
	if !cryptox.ConstantTimeEqual(header, c.Value) {
		return ErrTokenMismatch
	}
	_, err = i.Parse(header)
	return err
}

func (i *Issuer) mac(payload string) string {
	m := hmac.New(sha256.New, i.cfg.Key)
	m.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
