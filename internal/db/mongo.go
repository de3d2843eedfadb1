package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"invoicedesk/internal/config"
	"invoicedesk/internal/logging"
)

// ConnectDB opens the pooled MongoDB client, retrying the initial connect with a fixed delay.
// The returned handle is owned by the caller and must be released with DisconnectDB.
func ConnectDB(cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	var client *mongo.Client
	attempt := 0
	err := WithRetries(func() error {
		attempt++
		c, err := connectOnce(cfg)
		if err != nil {
			logging.L().WithFields(logrus.Fields{
				"attempt":  attempt,
				"attempts": cfg.MongoConnectRetries,
			}).Warnf("MongoDB connect failed: %v", err)
			return err
		}
		client = c
		return nil
	}, cfg.MongoConnectRetries-1, cfg.MongoConnectDelay, func(error) bool { return true })
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", attempt, err)
	}

	logging.L().WithField("database", cfg.MongoDbName).Info("Successfully connected to MongoDB")
	return client, client.Database(cfg.MongoDbName), nil
}

func connectOnce(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMinPoolSize(cfg.MongoMinPoolSize).
		SetMaxPoolSize(cfg.MongoMaxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := Ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Ping checks the primary node.
func Ping(ctx context.Context, client *mongo.Client) error {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logging.L().Info("MongoDB connection closed")
	return nil
}
