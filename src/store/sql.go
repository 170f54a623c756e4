package store

import (
	"context"
	"fmt"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// messageRecord is the persisted row of a chat message.
type messageRecord struct {
	ID          string    `gorm:"primarykey;size:36"`
	ChannelID   string    `gorm:"size:64;not null;index:idx_chat_messages_channel_created,priority:1"`
	UserID      string    `gorm:"size:64;not null"`
	Content     string    `gorm:"type:text"`
	MessageType string    `gorm:"size:16;not null;default:text"`
	FileURL     string    `gorm:"size:1024"`
	FileName    string    `gorm:"size:255"`
	FileSize    int64     `gorm:"not null;default:0"`
	ReplyTo     string    `gorm:"size:36"`
	IsEdited    bool      `gorm:"not null;default:false"`
	IsDeleted   bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"index:idx_chat_messages_channel_created,priority:2"`
	UpdatedAt   time.Time
}

// TableName returns the table name for chat messages.
func (messageRecord) TableName() string {
	return "chat_messages"
}

func recordFromMessage(m types.ChatMessage) messageRecord {
	return messageRecord{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		UserID:      m.UserID,
		Content:     m.Content,
		MessageType: string(m.MessageType),
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		ReplyTo:     m.ReplyTo,
		IsEdited:    m.IsEdited,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (r messageRecord) message() types.ChatMessage {
	return types.ChatMessage{
		ID:          r.ID,
		ChannelID:   r.ChannelID,
		UserID:      r.UserID,
		Content:     r.Content,
		MessageType: types.MessageType(r.MessageType),
		FileURL:     r.FileURL,
		FileName:    r.FileName,
		FileSize:    r.FileSize,
		ReplyTo:     r.ReplyTo,
		IsEdited:    r.IsEdited,
		IsDeleted:   r.IsDeleted,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// SQL stores messages in a relational database through gorm.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

var _ MessageStore = (*SQL)(nil)

// OpenSQLite opens (creating if needed) a SQLite database at path and migrates
// the message table.
func OpenSQLite(path string) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQL(db)
}

// NewSQL wraps an open gorm connection and migrates the message table. Recent
// breaks created_at ties on rowid, so the dialect must be SQLite.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate chat_messages: %w", err)
	}
	return &SQL{db: db, now: time.Now}, nil
}

func (s *SQL) Append(ctx context.Context, msg NewMessage) (*types.ChatMessage, error) {
	m, err := Prepare(msg, s.now())
	if err != nil {
		return nil, err
	}
	rec := recordFromMessage(m)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &m, nil
}

func (s *SQL) Recent(ctx context.Context, channelID string, limit int) ([]types.ChatMessage, error) {
	var recs []messageRecord
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		Order("rowid DESC").
		Limit(ClampLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]types.ChatMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.message())
	}
	return out, nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
