package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/PayLink/internal/app/model"
	"github.com/sifan077/PayLink/internal/app/repository"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer mints and verifies bearer tokens whose subject is an email.
type TokenIssuer interface {
	Issue(subject string) (string, error)
	Subject(token string) (string, error)
}

// AuthService registers and authenticates users.
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	ResolveCurrentUser(ctx context.Context, token string) (*model.User, error)
}

// SignupInput captures data required to register a user.
type SignupInput struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,max=72"`
}

// LoginInput captures credentials presented at login.
type LoginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// AuthResult pairs a freshly issued token with the authenticated user.
type AuthResult struct {
	Token string
	User  *model.User
}

type authService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
}

// NewAuthService returns an AuthService storing bcrypt password hashes.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer) AuthService {
	return &authService{users: users, tokens: tokens, bcryptCost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, newError(ErrValidation, "email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrValidation, "email already registered", nil)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrAuth, "invalid email or password", nil)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, newError(ErrAuth, "invalid email or password", nil)
	}

	return s.issue(user)
}

func (s *authService) ResolveCurrentUser(ctx context.Context, token string) (*model.User, error) {
	email, err := s.tokens.Subject(token)
	if err != nil {
		return nil, newError(ErrAuth, "invalid or expired token", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrAuth, "user no longer exists", nil)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
