package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 4
	tokenSubject      = "admin"
	tokenIssuer       = "estock-support"
)

var (
	ErrInvalidPassword  = errors.New("invalid admin password")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidToken     = errors.New("invalid or expired token")
)

// CredentialStore 保存管理员密码的 bcrypt 哈希。
type CredentialStore interface {
	GetAdminPassword(ctx context.Context) (string, bool, error)
	SetAdminPassword(ctx context.Context, hash string) error
}

// Config 描述认证参数。Secret 为空时每次启动随机生成，重启后旧令牌失效。
type Config struct {
	DefaultPassword string
	Secret          string
	TokenTTL        time.Duration
}

// Service 负责管理后台登录与令牌校验。
type Service struct {
	store           CredentialStore
	defaultPassword string
	secret          []byte
	ttl             time.Duration
	now             func() time.Time
}

func NewService(store CredentialStore, cfg Config) *Service {
	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		store:           store,
		defaultPassword: cfg.DefaultPassword,
		secret:          []byte(secret),
		ttl:             ttl,
		now:             time.Now,
	}
}

// Login 校验密码并签发 HS256 令牌。未保存过密码时与默认密码比较。
func (s *Service) Login(ctx context.Context, password string) (string, time.Time, error) {
	if err := s.checkPassword(ctx, password); err != nil {
		return "", time.Time{}, err
	}
	return s.issue()
}

func (s *Service) checkPassword(ctx context.Context, password string) error {
	hash, found, err := s.store.GetAdminPassword(ctx)
	if err != nil {
		return fmt.Errorf("load admin password: %w", err)
	}
	if !found || hash == "" {
		if s.defaultPassword == "" || password != s.defaultPassword {
			return ErrInvalidPassword
		}
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

func (s *Service) issue() (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   tokenSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return token, expires, nil
}

// Verify 校验令牌签名、签发方与有效期。
func (s *Service) Verify(token string) error {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ChangePassword 保存新密码的哈希。
func (s *Service) ChangePassword(ctx context.Context, password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return s.store.SetAdminPassword(ctx, string(hash))
}
