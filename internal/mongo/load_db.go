package mongo

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

func LoadDB(uri, dbName string) (*mongo.Client, *mongo.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatal("Cannot connect to Mongo:", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Cannot ping Mongo:", err)
	}
	return client, client.Database(dbName)
}
