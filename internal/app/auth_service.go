package app

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperbrain/internal/model"
	"paperbrain/internal/pkg/jwtutil"
)

var ErrEmailExists = errors.New("email already exists")

// UserStore is the user directory the auth service resolves owners against.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type AuthService struct {
	users         UserStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Email       string
	DisplayName string
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Register provisions a user and returns a token for it. There are no
// credentials; whoever can call Register is trusted.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	displayName := strings.TrimSpace(input.DisplayName)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email %q", input.Email)
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	user := &model.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.IssueToken(ctx, user.ID)
}

// IssueToken mints a token for an existing user.
func (s *AuthService) IssueToken(ctx context.Context, userID string) (*AuthResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Login issues a token for the user registered under email.
func (s *AuthService) Login(ctx context.Context, email string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return s.IssueToken(ctx, user.ID)
}

// ResolveOwner maps a request carrying "Authorization: Bearer <token>" to
// the id of a known user.
func (s *AuthService) ResolveOwner(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthenticated
	}

	claims, err := jwtutil.ParseToken(s.jwtSecret, strings.TrimSpace(strings.TrimPrefix(header, prefix)))
	if err != nil {
		return "", ErrUnauthenticated
	}
	user, err := s.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUnauthenticated
	}
	return user.ID, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
