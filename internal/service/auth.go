// Package service contains the account service and the buyer record-mutation pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/Ashutosh-Shukla-036/buyer-leads/internal/crypto"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/limiter"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/validate"
)

// AuthService issues and verifies bearer credentials.
type AuthService interface {
	// Register creates an account and signs it in.
	Register(ctx context.Context, email, password string) (model.Tokens, error)
	// Login authenticates with throttling by (email, ip).
	Login(ctx context.Context, email, password, ip string) (model.Tokens, error)
	// Verify checks a bearer token and returns the identity it was issued to.
	Verify(token string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	hasher    *pkgcrypto.Hasher
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, hasher *pkgcrypto.Hasher, signKey []byte, accessTTL time.Duration, lim limiter.Limiter,
) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, hasher: hasher, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (model.Tokens, error) {
	email = normEmail(email)
	if err := validate.Credentials(email, password); err != nil {
		return model.Tokens{}, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{ID: uid, Email: email, PwdHash: hash, SaltAuth: salt}
	if err := s.users.Create(ctx, u); err != nil {
		return model.Tokens{}, err
	}
	return s.issueAccessToken(uid)
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, error) {
	email = normEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, err
	}
	if err != nil || !s.hasher.Verify(password, u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// unknown email and wrong password are indistinguishable
		return model.Tokens{}, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthenticated)
	}

	// best-effort
	_ = s.lim.Success(ctx, email, ipHash)

	return s.issueAccessToken(u.ID)
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify accepts only HS256 tokens signed with our key, with 30s clock leeway.
func (s *AuthServiceImpl) Verify(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: missing token", errs.ErrUnauthenticated)
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthenticated)
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthenticated)
	}
	return id, nil
}
