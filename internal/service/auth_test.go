package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/Ashutosh-Shukla-036/buyer-leads/internal/crypto"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/limiter"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository"
)

var testHasher = pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	s := NewAuthService(users, testHasher, []byte("k"), time.Minute, &fakeLimiter{})
	ctx := context.Background()

	_, err := s.Register(ctx, "not-an-email", "123")
	var ve *errs.ValidationError
	if !errors.As(err, &ve) || len(ve.Violations) != 2 {
		t.Fatalf("want two violations, got %v", err)
	}

	tok, err := s.Register(ctx, " Alice@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatalf("empty token")
	}
	if _, ok := users.byEmail["alice@example.com"]; !ok {
		t.Fatalf("email not normalised: %v", users.byEmail)
	}

	if _, err := s.Register(ctx, "alice@example.com", "secret2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(ctx, "bob@example.com", "secret1"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	hash, salt, err := testHasher.Hash("correct")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@example.com", PwdHash: hash, SaltAuth: salt}
	users := &fakeUsers{byEmail: map[string]*model.User{u.Email: u}}
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, testHasher, []byte("secret"), 2*time.Minute, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, err := s.Login(ctx, "alice@example.com", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.Login(ctx, "alice@example.com", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, err := s.Login(ctx, "nope@example.com", "x", ""); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated on missing user, got %v", err)
	}

	users.getErr = errs.ErrStorage
	if _, err := s.Login(ctx, "alice@example.com", "correct", ""); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("want storage error, got %v", err)
	}
	users.getErr = nil

	lim.failBlocked = true
	if _, err := s.Login(ctx, "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited after blocking failure, got %v", err)
	}
	lim.failBlocked = false

	if _, err := s.Login(ctx, "alice@example.com", "wrong", ""); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated on wrong password, got %v", err)
	}

	tok, err := s.Login(ctx, "ALICE@example.com", "correct", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := s.Verify(tok.AccessToken)
	if err != nil || id != u.ID {
		t.Fatalf("Verify: id=%v err=%v", id, err)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func signed(t *testing.T, claims jwt.RegisteredClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestAuth_Verify(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	s := NewAuthService(&fakeUsers{}, testHasher, key, time.Hour, &fakeLimiter{})
	uid := uuid.Must(uuid.NewV4())
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   uid.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	got, err := s.Verify(signed(t, valid, jwt.SigningMethodHS256, key))
	if err != nil || got != uid {
		t.Fatalf("valid token: id=%v err=%v", got, err)
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	cases := map[string]string{
		"empty":       "",
		"garbage":     "abc.def.ghi",
		"wrong key":   signed(t, valid, jwt.SigningMethodHS256, []byte("other")),
		"wrong alg":   signed(t, valid, jwt.SigningMethodHS512, key),
		"expired":     signed(t, expired, jwt.SigningMethodHS256, key),
		"bad subject": signed(t, jwt.RegisteredClaims{Subject: "x", ExpiresAt: valid.ExpiresAt}, jwt.SigningMethodHS256, key),
		"no expiry":   signed(t, jwt.RegisteredClaims{Subject: uid.String()}, jwt.SigningMethodHS256, key),
	}
	for name, tok := range cases {
		if _, err := s.Verify(tok); !errors.Is(err, errs.ErrUnauthenticated) {
			t.Fatalf("%s: want ErrUnauthenticated, got %v", name, err)
		}
	}
}
