package main

import (
	"context"
	"fmt"

	"github.com/princinho/authgate/config"
	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/store"
	"github.com/sirupsen/logrus"
)

// backend bundles a credential store with its connectivity probe and setup steps.
type backend struct {
	users   store.CredentialStore
	pinger  database.Pinger
	prepare func(ctx context.Context) error
	close   func(ctx context.Context)
}

func openBackend(cfg *config.Config, log *logrus.Entry) (*backend, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		users := store.NewMongoStore(client.Database(cfg.DatabaseName))
		return &backend{
			users:   users,
			pinger:  database.MongoPinger(client),
			prepare: users.EnsureIndexes,
			close: func(ctx context.Context) {
				if err := client.Disconnect(ctx); err != nil {
					log.WithError(err).Warn("mongo disconnect")
				}
			},
		}, nil

	case config.DriverPostgres:
		db, err := database.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &backend{
			users:  store.NewPostgresStore(db),
			pinger: database.SQLPinger(db),
			prepare: func(ctx context.Context) error {
				return database.Migrate(ctx, db)
			},
			close: func(context.Context) {
				if err := db.Close(); err != nil {
					log.WithError(err).Warn("postgres close")
				}
			},
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store; identities are lost on restart")
		return &backend{
			users:   store.NewMemoryStore(),
			pinger:  database.PingFunc(func(context.Context) error { return nil }),
			prepare: func(context.Context) error { return nil },
			close:   func(context.Context) {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
