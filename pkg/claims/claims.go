package claims

import jwt "github.com/dgrijalva/jwt-go"

type contextKey string

const (
	TokenContextKey   contextKey = "token"
	SessionContextKey contextKey = "session"
)

// Claims ties an access token to the server-side session it was issued for.
type Claims struct {
	User struct {
		Username string `json:"username"`
		ID       string `json:"id"`
	} `json:"user"`
	SessionID string `json:"sid"`
	jwt.StandardClaims
}
