package routing

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"mongosession/pkg/handlers"
	"mongosession/pkg/session"
	"mongosession/pkg/user"
)

func InitRoutes(api *mux.Router, db *sql.DB, sessions *session.Repository, secret []byte, logger *slog.Logger) {

	userService := user.NewService(user.NewSQLRepo(db), sessions)
	userHandler := handlers.NewUserHandler(userService, secret, logger)

	sessionHandler := handlers.NewSessionHandler(sessions, secret, logger)

	/* -+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ */

	authRouter := api.PathPrefix("").Subrouter()
	sessionRouter := api.PathPrefix("/session").Subrouter()
	userRouter := api.PathPrefix("/user").Subrouter()

	/* auth routers */
	authRouter.HandleFunc("/register", userHandler.Register).Methods("POST").Name("register")
	authRouter.HandleFunc("/login", userHandler.Login).Methods("POST").Name("login")

	/* session routers */
	sessionRouter.HandleFunc("", sessionHandler.GetSession).Methods("GET")
	sessionRouter.HandleFunc("", sessionHandler.Logout).Methods("DELETE")
	sessionRouter.HandleFunc("/rotate", sessionHandler.Rotate).Methods("POST")
	sessionRouter.HandleFunc("/attributes/{name}", sessionHandler.SetAttribute).Methods("PUT")
	sessionRouter.HandleFunc("/attributes/{name}", sessionHandler.RemoveAttribute).Methods("DELETE")

	/* user routers */
	userRouter.HandleFunc("/{login:[a-zA-Z0-9]+}/sessions", sessionHandler.SessionsByUser).Methods("GET")
}

func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		if _, err := w.Write([]byte(`{"message":"not found"}`)); err != nil {
			logger.Error("failed to write fallback JSON", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	})
}

func StartServer(r *mux.Router, addr string) {
	fmt.Println("\n\033[32m", "The server is running on", addr, "\033[0m")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("Server failed:", err)
	}
}
