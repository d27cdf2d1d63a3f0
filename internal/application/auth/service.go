package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// Result is returned by Register and Login.
type Result struct {
	Bearer string       `json:"Bearer"`
	User   *domain.User `json:"user"`
}

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*Result, error)
	Login(ctx context.Context, req domain.LoginRequest) (*Result, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
}

type jwtSigner interface {
	Sign(userID, role string) (string, error)
}

type service struct {
	repo   userStore
	signer jwtSigner
	cost   int
}

type ServiceDeps struct {
	UserRepo    userStore
	JWTProvider jwtSigner
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: deps.UserRepo, signer: deps.JWTProvider, cost: cost}
}

// Register creates a customer account. Admins are provisioned out of band.
func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Result, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	return s.issue(u)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) issue(u *domain.User) (*Result, error) {
	bearer, err := s.signer.Sign(u.UserID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Result{Bearer: bearer, User: u}, nil
}
