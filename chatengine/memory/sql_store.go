package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// chatMessageRecord chat_messages 表的行
type chatMessageRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SessionKey string    `gorm:"size:255;not null;index:idx_chat_messages_session"`
	Role       string    `gorm:"size:32;not null"`
	Content    string    `gorm:"type:text"`
	Metadata   string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (chatMessageRecord) TableName() string { return "chat_messages" }

// SQLChatStore 基于 gorm 的 ChatStore，按自增主键保持追加顺序。
type SQLChatStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLChatStore 创建 SQL 存储并自动迁移 chat_messages 表
func NewSQLChatStore(db *gorm.DB, logger *zap.Logger) (*SQLChatStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&chatMessageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate chat_messages: %w", err)
	}
	return &SQLChatStore{
		db:     db,
		logger: logger.With(zap.String("component", "chat_store_sql")),
	}, nil
}

func (s *SQLChatStore) AddMessage(ctx context.Context, key string, msg types.Message) error {
	rec := chatMessageRecord{
		SessionKey: key,
		Role:       string(msg.Role),
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		rec.Metadata = string(data)
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *SQLChatStore) GetMessages(ctx context.Context, key string) ([]types.Message, error) {
	var recs []chatMessageRecord
	err := s.db.WithContext(ctx).
		Where("session_key = ?", key).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}

	msgs := make([]types.Message, 0, len(recs))
	for _, rec := range recs {
		msg := types.Message{
			Role:      types.Role(rec.Role),
			Content:   rec.Content,
			CreatedAt: rec.CreatedAt,
		}
		if rec.Metadata != "" {
			if err := json.Unmarshal([]byte(rec.Metadata), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of message %d: %w", rec.ID, err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *SQLChatStore) DeleteMessages(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&chatMessageRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete chat messages: %w", res.Error)
	}
	s.logger.Debug("chat history deleted",
		zap.String("key", key),
		zap.Int64("rows", res.RowsAffected))
	return nil
}
