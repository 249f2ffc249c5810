package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"mongosession/pkg/claims"
	"mongosession/pkg/session"
)

// SessionRepository is what the session endpoints need from the store.
// *session.Repository satisfies it.
type SessionRepository interface {
	Save(ctx context.Context, s *session.Session) error
	DeleteByID(ctx context.Context, id string) error
	FindByPrincipalName(ctx context.Context, principal string) (map[string]*session.Session, error)
}

type SessionHandler struct {
	Sessions SessionRepository
	Logger   *slog.Logger
	Secret   []byte
}

// SessionView is the JSON form of a session.
type SessionView struct {
	ID                  string         `json:"id"`
	CreatedAt           time.Time      `json:"createdAt"`
	LastAccessedAt      time.Time      `json:"lastAccessedAt"`
	MaxInactiveInterval int64          `json:"maxInactiveInterval"`
	ExpireAt            *time.Time     `json:"expireAt,omitempty"`
	Attributes          map[string]any `json:"attributes,omitempty"`
}

func NewSessionHandler(sessions SessionRepository, secret []byte, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		Sessions: sessions,
		Logger:   logger,
		Secret:   secret,
	}
}

func newSessionView(s *session.Session, withAttributes bool) SessionView {
	v := SessionView{
		ID:                  s.ID(),
		CreatedAt:           s.CreatedAt(),
		LastAccessedAt:      s.LastAccessedAt(),
		MaxInactiveInterval: int64(s.MaxInactiveInterval() / time.Second),
	}
	if exp := s.ExpireAt(); !exp.IsZero() {
		v.ExpireAt = &exp
	}
	if withAttributes {
		v.Attributes = s.Attributes()
	}
	return v
}

// readOnly attributes are written at login and carry the principal.
func readOnly(name string) bool {
	return name == session.PrincipalNameIndexName || name == session.SecurityContextAttribute
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := getSessionFromContext(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.Logger, newSessionView(s, true))
}

func (h *SessionHandler) SetAttribute(w http.ResponseWriter, r *http.Request) {
	s, ok := getSessionFromContext(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)[muxVarAttrName]
	if readOnly(name) {
		writeError(w, http.StatusForbidden, typeMessage, "attribute is read-only")
		return
	}

	var value any
	if ok := DecodeJSONBody(w, r, &value); !ok {
		return
	}

	s.SetAttribute(name, value)
	if err := h.Sessions.Save(r.Context(), s); err != nil {
		h.Logger.Error("set attribute", "session", s.ID(), "attribute", name, "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed to save session")
		return
	}
	writeJSON(w, h.Logger, newSessionView(s, true))
}

func (h *SessionHandler) RemoveAttribute(w http.ResponseWriter, r *http.Request) {
	s, ok := getSessionFromContext(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)[muxVarAttrName]
	if readOnly(name) {
		writeError(w, http.StatusForbidden, typeMessage, "attribute is read-only")
		return
	}

	s.RemoveAttribute(name)
	if err := h.Sessions.Save(r.Context(), s); err != nil {
		h.Logger.Error("remove attribute", "session", s.ID(), "attribute", name, "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed to save session")
		return
	}
	writeJSON(w, h.Logger, newSessionView(s, true))
}

// Rotate gives the session a fresh id and answers with a token for it. The
// token carrying the previous id stops working.
func (h *SessionHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	var c claims.Claims
	if ok := getClaimsFromContext(w, r, &c); !ok {
		return
	}
	s, ok := getSessionFromContext(w, r)
	if !ok {
		return
	}

	previous := s.ID()
	s.ChangeID()
	if err := h.Sessions.Save(r.Context(), s); err != nil {
		h.Logger.Error("rotate", "session", previous, "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed to save session")
		return
	}
	h.Logger.Info("session id rotated", "from", previous, "to", s.ID())

	GenerateToken(w, h.Logger, h.Secret, c.User.Username, c.User.ID, s.ID(), "rotate")
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := getSessionFromContext(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.DeleteByID(r.Context(), s.ID()); err != nil {
		h.Logger.Error("logout", "session", s.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed to delete session")
		return
	}
	writeJSON(w, h.Logger, map[string]string{typeMessage: "success"})
}

// SessionsByUser lists the caller's own sessions, oldest first. Attribute
// values are left out.
func (h *SessionHandler) SessionsByUser(w http.ResponseWriter, r *http.Request) {
	var c claims.Claims
	if ok := getClaimsFromContext(w, r, &c); !ok {
		return
	}
	login := mux.Vars(r)[muxVarLogin]
	if login != c.User.Username {
		writeError(w, http.StatusForbidden, typeMessage, "forbidden")
		return
	}

	found, err := h.Sessions.FindByPrincipalName(r.Context(), login)
	if err != nil {
		h.Logger.Error("sessions by user", "user", login, "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "failed to list sessions")
		return
	}

	views := make([]SessionView, 0, len(found))
	for _, s := range found {
		views = append(views, newSessionView(s, false))
	}
	slices.SortFunc(views, func(a, b SessionView) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	writeJSON(w, h.Logger, views)
}
