package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"mongosession/pkg/user"

	jwt "github.com/dgrijalva/jwt-go"
)

const tokenTTL = time.Hour

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	Service user.ServiceInterface
	Logger  *slog.Logger
	Secret  []byte
}

type FieldError struct {
	Location string `json:"location"`
	Param    string `json:"param"`
	Value    string `json:"value"`
	Msg      string `json:"msg"`
}

func NewUserHandler(service user.ServiceInterface, secret []byte, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
		Secret:  secret,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	login, err := h.Service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if err.Error() != "user already exists" {
			h.Logger.Error("register", "error", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ok := WriteResp(w, h.Logger, map[string]any{
			"errors": []FieldError{
				{
					Location: "body",
					Param:    "username",
					Value:    req.Username,
					Msg:      "already exists",
				},
			},
		}, http.StatusUnprocessableEntity); ok {
			h.Logger.Error("register", "error", err.Error(), "user", req.Username)
		}
		return
	}

	GenerateToken(w, h.Logger, h.Secret, login.User.Username, login.User.ID, login.SessionID, "register")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	login, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var msg string
		switch err.Error() {
		case "user not found":
			msg = "user not found"
		case "invalid credentials":
			msg = "invalid password"
		default:
			h.Logger.Error("login", "error", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ok := WriteResp(w, h.Logger, map[string]any{"message": msg}, http.StatusUnauthorized); ok {
			h.Logger.Error("login", "error", "unauthorized", "user", req.Username)
		}
		return
	}

	GenerateToken(w, h.Logger, h.Secret, login.User.Username, login.User.ID, login.SessionID, "login")
}

// GenerateToken writes a signed token bound to the given session id.
func GenerateToken(w http.ResponseWriter, logger *slog.Logger, secret []byte, username, userID, sessionID, action string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": map[string]string{
			"username": username,
			"id":       userID,
		},
		"sid": sessionID,
		"iat": time.Now().UTC().Unix(),
		"exp": time.Now().Add(tokenTTL).UTC().Unix(),
	})
	tokenString, err := token.SignedString(secret)
	if err != nil {
		logger.Error("token signing", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if ok := WriteResp(w, logger, map[string]any{"token": tokenString}, http.StatusOK); ok {
		logger.Info(action, "user", userID, "session", sessionID)
	}
}
