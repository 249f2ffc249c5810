package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"mongosession/pkg/session"
)

type ServiceInterface interface {
	Register(ctx context.Context, username, password string) (*Login, error)
	Login(ctx context.Context, username, password string) (*Login, error)
}

// SessionStore is the part of the session repository the service needs.
type SessionStore interface {
	CreateSession(ctx context.Context) *session.Session
	Save(ctx context.Context, s *session.Session) error
}

type Service struct {
	Repo     Repository
	Sessions SessionStore
}

func NewService(repo Repository, sessions SessionStore) *Service {
	return &Service{Repo: repo, Sessions: sessions}
}

func (s *Service) Register(ctx context.Context, username, password string) (*Login, error) {
	exist, err := s.Repo.FindByUsername(ctx, username)
	if exist != nil && err == nil {
		return nil, errors.New("user already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password error: %s", err)
	}

	user := &User{
		ID:       uuid.NewString(),
		Username: username,
		Password: string(hashedPassword),
	}

	err = s.Repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	sessionID, err := s.openSession(ctx, user)
	if err != nil {
		return nil, errors.New("failed to create session")
	}

	return &Login{User: user, SessionID: sessionID}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Login, error) {
	user, err := s.Repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.New("user not found")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	sessionID, err := s.openSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %s", err)
	}

	return &Login{User: user, SessionID: sessionID}, nil
}

// openSession stores a new session whose principal is the user, so it can be
// found again through the principal index.
func (s *Service) openSession(ctx context.Context, user *User) (string, error) {
	sess := s.Sessions.CreateSession(ctx)
	sess.SetAttribute(session.PrincipalNameIndexName, user.Username)
	sess.SetAttribute(session.SecurityContextAttribute, &session.SecurityContext{
		Authentication: &session.Authentication{Name: user.Username, Authenticated: true},
	})
	sess.SetAttribute("user.id", user.ID)

	if err := s.Sessions.Save(ctx, sess); err != nil {
		return "", err
	}
	return sess.ID(), nil
}
