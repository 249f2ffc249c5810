package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"mongosession/pkg/claims"
	"mongosession/pkg/handlers"
	"mongosession/pkg/user"

	jwt "github.com/dgrijalva/jwt-go"
)

var testSecret = []byte("test-secret")

type mockService struct {
	mock.Mock
}

func (m *mockService) Register(ctx context.Context, username, password string) (*user.Login, error) {
	args := m.Called(username, password)
	return args.Get(0).(*user.Login), args.Error(1)
}

func (m *mockService) Login(ctx context.Context, username, password string) (*user.Login, error) {
	args := m.Called(username, password)
	return args.Get(0).(*user.Login), args.Error(1)
}

func validLogin() *user.Login {
	return &user.Login{User: &user.User{ID: "id", Username: "validuser"}, SessionID: "sid-1"}
}

func TestLoginHandler(t *testing.T) {
	m := new(mockService)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	m.On("Login", "validuser", "correct").Return(validLogin(), nil)
	m.On("Login", "wronguser", "correct").Return((*user.Login)(nil), errors.New("user not found"))
	m.On("Login", "validuser", "wrong").Return((*user.Login)(nil), errors.New("invalid credentials"))
	m.On("Login", "validuser", "mongo-down").Return((*user.Login)(nil), errors.New("failed to create session: store unavailable"))

	handler := handlers.NewUserHandler(m, testSecret, logger)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Successful login",
			body:           `{"username":"validuser","password":"correct"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "User not found",
			body:           `{"username":"wronguser","password":"correct"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "user not found",
		},
		{
			name:           "Invalid credentials",
			body:           `{"username":"validuser","password":"wrong"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid password",
		},
		{
			name:           "Session store failure",
			body:           `{"username":"validuser","password":"mongo-down"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "failed to create session",
		},
		{
			name:           "Bad Content-Type",
			body:           `{"username":"validuser","password":"wrong"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  `{"error":"invalid Content-Type"}`,
		},
		{
			name:           "Bad JSON",
			body:           `{"username" oops "validuser","password":"wrong"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  `{"error":"bad json"}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(test.body))
			if test.name == "Bad Content-Type" {
				req.Header.Set("Content-Type", "plain/text")
			} else {
				req.Header.Set("Content-Type", "application/json")
			}

			rr := httptest.NewRecorder()

			handler.Login(rr, req)

			assert.Equal(t, test.expectedStatus, rr.Code)

			if test.expectedError != "" {
				assert.Contains(t, rr.Body.String(), test.expectedError)
			}
		})
	}

	m.AssertExpectations(t)
}

func TestRegister(t *testing.T) {
	m := new(mockService)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	m.On("Register", "validuser", "correct").Return(validLogin(), nil)
	m.On("Register", "existinguser", "password").Return((*user.Login)(nil), errors.New("user already exists"))
	m.On("Register", "wronguser", "password").Return((*user.Login)(nil), errors.New("unexpected error"))

	handler := handlers.NewUserHandler(m, testSecret, logger)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Successful registration",
			body:           `{"username":"validuser","password":"correct"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "User already exists",
			body:           `{"username":"existinguser","password":"password"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "already exists",
		},
		{
			name:           "Unexpected error",
			body:           `{"username":"wronguser","password":"password"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "unexpected error",
		},
		{
			name:           "Bad Content-Type",
			body:           `{"username":"validuser","password":"correct"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  `invalid Content-Type`,
		},
		{
			name:           "Bad JSON",
			body:           `{"username" oops "validuser","password":"correct"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  `bad json`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(test.body))
			if test.name == "Bad Content-Type" {
				req.Header.Set("Content-Type", "plain/text")
			} else {
				req.Header.Set("Content-Type", "application/json")
			}

			rr := httptest.NewRecorder()

			handler.Register(rr, req)

			assert.Equal(t, test.expectedStatus, rr.Code)

			if test.expectedError != "" {
				assert.Contains(t, rr.Body.String(), test.expectedError)
			}
		})
	}

	m.AssertExpectations(t)
}

func TestTokenCarriesSessionID(t *testing.T) {
	m := new(mockService)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	m.On("Login", "validuser", "correct").Return(validLogin(), nil)

	handler := handlers.NewUserHandler(m, testSecret, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"validuser","password":"correct"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.Login(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	c := parseToken(t, rr.Body.String())
	assert.Equal(t, "sid-1", c.SessionID)
	assert.Equal(t, "validuser", c.User.Username)
	assert.Equal(t, "id", c.User.ID)
}

func parseToken(t *testing.T, body string) *claims.Claims {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	if !assert.NoError(t, json.Unmarshal([]byte(body), &resp)) {
		t.FailNow()
	}

	c := &claims.Claims{}
	_, err := jwt.ParseWithClaims(resp.Token, c, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return c
}
