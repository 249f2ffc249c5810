package main

import (
	"context"
	"log"

	"mongosession/internal/config"
	"mongosession/internal/logger"
	"mongosession/internal/mongo"
	"mongosession/internal/mysql"
	"mongosession/internal/routing"
	"mongosession/pkg/middleware"
	"mongosession/pkg/session"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load() // load env var from .env

	logger := logger.Load(cfg.LogLevel)

	db := mysql.LoadDB(cfg.MySQLDSN)
	defer db.Close()

	client, mongoDB := mongo.LoadDB(cfg.MongoURI, cfg.MongoDB)
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("mongo disconnect", "error", err)
		}
	}()

	var converter session.Converter
	switch cfg.Converter {
	case config.ConverterStructured:
		converter = session.NewDefaultStructuredConverter(cfg.MaxInactiveInterval)
	default:
		converter = session.NewGobConverter(cfg.MaxInactiveInterval)
	}

	events := session.NewDispatcher(session.DispatcherConfig{BufferSize: 256, DropIfFull: true},
		session.LogPublisher{Logger: logger}, logger)
	defer events.Close()

	sessions, err := session.NewRepository(
		session.NewMongoStore(mongoDB, cfg.Collection),
		session.WithConverter(converter),
		session.WithMaxInactiveInterval(cfg.MaxInactiveInterval),
		session.WithPublisher(events),
		session.WithLogger(logger),
	)
	if err != nil {
		log.Fatal("Cannot build session repository:", err)
	}
	if err := sessions.EnsureIndexes(context.Background()); err != nil {
		log.Fatal("Cannot create session indexes:", err)
	}
	logger.Info("session store ready", "collection", cfg.Collection, "converter", cfg.Converter,
		"maxInactiveInterval", cfg.MaxInactiveInterval)

	secret := []byte(cfg.JWTSecret)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Panic(logger))
	api.Use(middleware.CheckJWT(secret, sessions, logger))

	routing.InitRoutes(api, db, sessions, secret, logger)
	routing.ServeFallback(r, logger)
	routing.StartServer(r, cfg.Addr)
}
