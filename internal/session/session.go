// Package session keeps the FULTec access token of a logged-in operator in
// an encrypted, signed cookie.
package session

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gtank/cryptopasta"
	"golang.org/x/crypto/hkdf"

	"posto-dashboard/internal/config"
)

var (
	ErrNoSession = errors.New("session: none")
	ErrExpired   = errors.New("session: expired")
	ErrTampered  = errors.New("session: invalid cookie")
)

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"exp"`
}

func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

type Manager struct {
	cookieName string
	secure     bool
	defaultTTL time.Duration
	encKey     *[32]byte
	macKey     *[32]byte
	now        func() time.Time
}

func NewManager(cfg config.SessionConfig) (*Manager, error) {
	encKey, err := deriveKey(cfg.Secret, "posto-dashboard session encryption")
	if err != nil {
		return nil, err
	}
	macKey, err := deriveKey(cfg.Secret, "posto-dashboard session signature")
	if err != nil {
		return nil, err
	}
	return &Manager{
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		defaultTTL: cfg.DefaultTTL,
		encKey:     encKey,
		macKey:     macKey,
		now:        time.Now,
	}, nil
}

func deriveKey(secret, info string) (*[32]byte, error) {
	key := &[32]byte{}
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key[:]); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return key, nil
}

// New builds a session for token. The expiry is the token's exp claim when
// it is a JWT carrying one, the default TTL from now otherwise.
func (m *Manager) New(token, username string) Session {
	exp, ok := TokenExpiry(token)
	if !ok {
		exp = m.now().Add(m.defaultTTL)
	}
	return Session{Token: token, Username: username, ExpiresAt: exp}
}

// TokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on the token itself.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (m *Manager) Set(w http.ResponseWriter, s Session) error {
	value, err := m.seal(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   max(int(s.ExpiresAt.Sub(m.now()).Seconds()), 1),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get returns the request's session. Expired and tampered cookies are
// errors so callers can clear them.
func (m *Manager) Get(r *http.Request) (Session, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrNoSession
	}
	s, err := m.open(c.Value)
	if err != nil {
		return Session{}, err
	}
	if !s.Valid(m.now()) {
		return Session{}, ErrExpired
	}
	return s, nil
}

func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) seal(s Session) (string, error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	ciphertext, err := cryptopasta.Encrypt(plaintext, m.encKey)
	if err != nil {
		return "", fmt.Errorf("session: encrypt: %w", err)
	}
	mac := cryptopasta.GenerateHMAC(ciphertext, m.macKey)
	return base64.RawURLEncoding.EncodeToString(ciphertext) + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

func (m *Manager) open(value string) (Session, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok {
		return Session{}, ErrTampered
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Session{}, ErrTampered
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Session{}, ErrTampered
	}
	if !cryptopasta.CheckHMAC(ciphertext, mac, m.macKey) {
		return Session{}, ErrTampered
	}
	plaintext, err := cryptopasta.Decrypt(ciphertext, m.encKey)
	if err != nil {
		return Session{}, ErrTampered
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return Session{}, ErrTampered
	}
	return s, nil
}
