package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	configCollection   = "config"
	sessionsCollection = "sessions"

	chatAccountItem = "chatAccount"
	chatTokenKey    = "token"
)

// Client wraps MongoDB client
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// ConfigItem represents a configuration item in the config collection
type ConfigItem struct {
	ID    string `bson:"_id,omitempty"`
	Item  string `bson:"item"`
	Key   string `bson:"key"`
	Value string `bson:"value"`
	Desc  string `bson:"desc"`
}

// Session is the stored record of one probe run
type Session struct {
	ID            string `bson:"_id"`
	URL           string `bson:"url"`
	Opened        bool   `bson:"opened"`
	OpenedAt      int64  `bson:"opened_at,omitempty"`
	ClosedAt      int64  `bson:"closed_at,omitempty"`
	Frames        int    `bson:"frames"`
	BytesReceived int    `bson:"bytes_received"`
	Errors        int    `bson:"errors"`
	LastError     string `bson:"last_error,omitempty"`
	CloseCode     int    `bson:"close_code,omitempty"`
	CloseReason   string `bson:"close_reason,omitempty"`
	RecordedAt    string `bson:"recorded_at"`
}

// NewClient creates a new MongoDB client
func NewClient(addr string, dbName string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

// Close closes the MongoDB connection
func (c *Client) Close() error {
	return c.client.Disconnect(context.Background())
}

// GetConfigValue retrieves a configuration value from the config collection
func (c *Client) GetConfigValue(ctx context.Context, item, key string) (string, error) {
	collection := c.database.Collection(configCollection)

	var config ConfigItem
	err := collection.FindOne(ctx, ConfigFilter(item, key)).Decode(&config)
	if err != nil {
		return "", err
	}

	return config.Value, nil
}

// GetChatToken retrieves the chat bearer token from MongoDB
func (c *Client) GetChatToken(ctx context.Context) (string, error) {
	token, err := c.GetConfigValue(ctx, chatAccountItem, chatTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to get chat token: %w", err)
	}
	return token, nil
}

// UpsertSession inserts or replaces a session record
func (c *Client) UpsertSession(ctx context.Context, session *Session) error {
	collection := c.database.Collection(sessionsCollection)

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}
	return nil
}

// ConfigFilter selects a config item by item and key
func ConfigFilter(item, key string) bson.M {
	return bson.M{
		"item": item,
		"key":  key,
	}
}
