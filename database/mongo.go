package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ConnectMongo builds a client for uri. The driver connects lazily, so this
// never blocks on the server; the Monitor performs the first ping.
func ConnectMongo(uri string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPI).
		SetRetryWrites(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return client, nil
}

// MongoPinger checks the primary is reachable.
func MongoPinger(client *mongo.Client) Pinger {
	return PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}
