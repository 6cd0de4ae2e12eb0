package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

// Claims carry the role fetched at login; it is not re-checked per action.
type Claims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type UserService interface {
	Login(ctx context.Context, login, password string) (string, *models.User, error)
	Create(ctx context.Context, login, password string, role models.Role) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	ParseToken(token string) (*Claims, error)
	// EnsureAdmin creates the configured admin account when it does not exist yet.
	EnsureAdmin(ctx context.Context) error
}

type userService struct {
	stg    storage.IUserStorage
	log    logger.ILogger
	secret []byte
	ttl    time.Duration
	admin  string
	passwd string
}

func NewUserService(stg storage.IStorage, cfg config.Config, log logger.ILogger) UserService {
	return &userService{
		stg:    stg.User(),
		log:    log,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.JWTTTL,
		admin:  cfg.AdminEmail,
		passwd: cfg.AdminPasswd,
	}
}

func (s *userService) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	user, err := s.stg.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	s.log.Info("user logged in", logger.String("user", user.ID), logger.String("role", string(user.Role)))
	return signed, user, nil
}

func (s *userService) Create(ctx context.Context, login, password string, role models.Role) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || len(password) < 6 {
		return nil, fmt.Errorf("%w: login and a password of at least 6 characters are required", ErrInvalidInput)
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{PasswordHash: hash, Role: role}
	if strings.Contains(login, "@") {
		u.Email = &login
	} else {
		u.Phone = &login
	}

	created, err := s.stg.Create(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", logger.String("user", created.ID), logger.String("role", string(role)))
	return created, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.stg.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *userService) EnsureAdmin(ctx context.Context) error {
	if s.admin == "" || s.passwd == "" {
		return nil
	}
	_, err := s.stg.GetByLogin(ctx, s.admin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if _, err := s.Create(ctx, s.admin, s.passwd, models.RoleAdmin); err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	return nil
}
