package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/batchflow/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoCollection MongoStore 使用到的集合操作子集
type mongoCollection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

type mongoDoc struct {
	Key              string    `bson:"_id"`
	ItemID           string    `bson:"item_id"`
	ResponseText     string    `bson:"response_text"`
	Model            string    `bson:"model,omitempty"`
	FinishReason     string    `bson:"finish_reason,omitempty"`
	PromptTokens     int       `bson:"prompt_tokens"`
	CompletionTokens int       `bson:"completion_tokens"`
	TotalTokens      int       `bson:"total_tokens"`
	CreatedAt        time.Time `bson:"created_at"`
}

// MongoStore MongoDB 缓存，每个键一个文档，_id 即缓存键
type MongoStore struct {
	coll   mongoCollection
	client *mongo.Client
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI        string `yaml:"uri" json:"uri" env:"URI"`
	Database   string `yaml:"database" json:"database" env:"DATABASE"`
	Collection string `yaml:"collection" json:"collection" env:"COLLECTION"`
}

// NewMongoStore 连接 MongoDB 并创建缓存
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "batchflow"
	}
	if cfg.Collection == "" {
		cfg.Collection = "cache_entries"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		client: client,
	}, nil
}

// Get 读取条目
func (s *MongoStore) Get(ctx context.Context, key string) (*Entry, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("mongo cache get: %w", err)
	}
	return &Entry{
		Key:          doc.Key,
		ItemID:       doc.ItemID,
		ResponseText: doc.ResponseText,
		Model:        doc.Model,
		FinishReason: doc.FinishReason,
		Usage: types.TokenUsage{
			PromptTokens:     doc.PromptTokens,
			CompletionTokens: doc.CompletionTokens,
			TotalTokens:      doc.TotalTokens,
		},
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Put 单文档 ReplaceOne(upsert) 在 MongoDB 中是原子的
func (s *MongoStore) Put(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return errors.New("nil cache entry")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	doc := mongoDoc{
		Key:              key,
		ItemID:           entry.ItemID,
		ResponseText:     entry.ResponseText,
		Model:            entry.Model,
		FinishReason:     entry.FinishReason,
		PromptTokens:     entry.Usage.PromptTokens,
		CompletionTokens: entry.Usage.CompletionTokens,
		TotalTokens:      entry.Usage.TotalTokens,
		CreatedAt:        created,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo cache put: %w", err)
	}
	return nil
}

// Invalidate 删除条目
func (s *MongoStore) Invalidate(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("mongo cache invalidate: %w", err)
	}
	return nil
}

// Close 断开连接
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
