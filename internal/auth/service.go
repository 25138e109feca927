package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfigured      = errors.New("admin login is not configured")
	ErrInvalidPassword    = errors.New("invalid admin password")
)

type Config struct {
	JWT           JWTConfig `mapstructure:"jwt"`
	AdminUsername string    `mapstructure:"admin_username"`
	// AdminPasswordHash is a bcrypt hash. AdminPassword is hashed at startup
	// when no hash is given.
	AdminPasswordHash string `mapstructure:"admin_password_hash" json:"-"`
	AdminPassword     string `mapstructure:"admin_password" json:"-"`
}

// Service authenticates the single hub administrator.
type Service struct {
	config       Config
	passwordHash string
}

func NewService(config Config) (*Service, error) {
	hash := config.AdminPasswordHash
	if hash == "" && config.AdminPassword != "" {
		var err error
		hash, err = HashPassword(config.AdminPassword)
		if err != nil {
			return nil, err
		}
	}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w: admin password hash is not bcrypt: %v", ErrInvalidPassword, err)
		}
	}
	if hash == "" || config.AdminUsername == "" || config.JWT.Secret == "" {
		slog.Warn("Admin login disabled, set admin credentials and a JWT secret to enable it")
	}
	return &Service{config: config, passwordHash: hash}, nil
}

func (s *Service) Enabled() bool {
	return s.passwordHash != "" && s.config.AdminUsername != "" && s.config.JWT.Secret != ""
}

func (s *Service) JWTSecret() string {
	return s.config.JWT.Secret
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.AdminUsername)) == 1
	passOK := checkPassword(password, s.passwordHash)
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.config.JWT, username, RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// HashPassword hashes an admin password for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
