package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"sync"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/golang-jwt/jwt/v5"
)

// magicLinkTTL bounds how long an emailed login link stays valid.
const magicLinkTTL = 15 * time.Minute

// ErrInvalidMagicLink is returned for unknown, used or expired login links.
var ErrInvalidMagicLink = errors.New("invalid or expired token")

// AccountStore is the account directory the auth service resolves emails against.
type AccountStore interface {
	CreateAccount(ctx context.Context, email string) (*database.Account, error)
	GetAccount(ctx context.Context, id string) (*database.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*database.Account, error)
}

type magicToken struct {
	accountID string
	expires   time.Time
}

// SessionClaims are carried by every session token. Subject is the account id.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	accounts   AccountStore
	jwtSecret  []byte
	tokenTTL   time.Duration
	smtpConfig SMTPConfig
	now        func() time.Time

	mu     sync.Mutex
	tokens map[string]magicToken // Map of token -> account
}

func NewAuthService(cfg AuthConfig, smtpConfig SMTPConfig, accounts AccountStore) *AuthService {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = defaultJWTSecret
	}
	if secret == defaultJWTSecret {
		log.Printf("Warning: JWT_SECRET is not set, using the development default")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &AuthService{
		accounts:   accounts,
		jwtSecret:  []byte(secret),
		tokenTTL:   ttl,
		smtpConfig: smtpConfig,
		now:        time.Now,
		tokens:     make(map[string]magicToken),
	}
}

// Signup designates an account for email, creating it on first use, and
// issues a login link for it.
func (s *AuthService) Signup(ctx context.Context, email, baseURL string) (*database.Account, string, error) {
	acct, err := s.accounts.CreateAccount(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}
	link, err := s.GenerateMagicLink(acct, baseURL)
	if err != nil {
		return nil, "", err
	}
	return acct, link, nil
}

// Login issues a login link for an existing account. Unknown emails return
// database.ErrNotFound.
func (s *AuthService) Login(ctx context.Context, email, baseURL string) (string, error) {
	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return s.GenerateMagicLink(acct, baseURL)
}

// GenerateMagicLink creates a one-time token and email magic link
func (s *AuthService) GenerateMagicLink(acct *database.Account, baseURL string) (string, error) {
	token, err := s.generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.mu.Lock()
	s.pruneLocked()
	s.tokens[token] = magicToken{accountID: acct.ID, expires: s.now().Add(magicLinkTTL)}
	s.mu.Unlock()

	magicLink := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, token)

	if s.smtpConfig.Host != "" {
		if err := s.sendMagicLinkEmail(acct.Email, magicLink); err != nil {
			log.Printf("Warning: Failed to send email: %v", err)
		}
	}

	// For development, return the magic link directly
	return magicLink, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns its account id.
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mt, exists := s.tokens[token]
	if !exists {
		return "", ErrInvalidMagicLink
	}
	delete(s.tokens, token)

	if s.now().After(mt.expires) {
		return "", ErrInvalidMagicLink
	}
	return mt.accountID, nil
}

// ExchangeMagicLink consumes a login link token and issues a session token.
func (s *AuthService) ExchangeMagicLink(ctx context.Context, token string) (*database.Account, string, error) {
	accountID, err := s.VerifyMagicLinkToken(token)
	if err != nil {
		return nil, "", err
	}
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	jwtToken, err := s.CreateJWT(acct)
	if err != nil {
		return nil, "", err
	}
	return acct, jwtToken, nil
}

// CreateJWT issues a session token for an account.
func (s *AuthService) CreateJWT(acct *database.Account) (string, error) {
	now := s.now()
	claims := SessionClaims{
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT validates a session token. An expired token yields a
// *quest.AuthError so callers can tell it apart from a bad token.
func (s *AuthService) VerifyJWT(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, &quest.AuthError{Message: "authentication expired"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim missing")
	}
	return claims, nil
}

// Account resolves the account named by a verified token.
func (s *AuthService) Account(ctx context.Context, claims *SessionClaims) (*database.Account, error) {
	return s.accounts.GetAccount(ctx, claims.Subject)
}

func (s *AuthService) pruneLocked() {
	now := s.now()
	for token, mt := range s.tokens {
		if now.After(mt.expires) {
			delete(s.tokens, token)
		}
	}
}

// Helper to generate a secure random token
func (s *AuthService) generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Helper to send a magic link email
func (s *AuthService) sendMagicLinkEmail(to, magicLink string) error {
	if s.smtpConfig.Host == "" || s.smtpConfig.Port == "" ||
		s.smtpConfig.Username == "" || s.smtpConfig.Password == "" {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", s.smtpConfig.Username, s.smtpConfig.Password, s.smtpConfig.Host)

	from := s.smtpConfig.From
	if from == "" {
		from = s.smtpConfig.Username
	}

	subject := "Your Bizniz Quest login link"
	body := fmt.Sprintf("Click the link below to continue your quest:\n\n%s\n\nIf you didn't request this link, you can safely ignore this email.", magicLink)
	message := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s", from, to, subject, body)

	addr := fmt.Sprintf("%s:%s", s.smtpConfig.Host, s.smtpConfig.Port)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
