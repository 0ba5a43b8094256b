package main

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Message struct {
	gorm.Model

	MessagesID   string `json:"messagesid" gorm:"column:messageid;uniqueIndex"`
	Conversation string `json:"conversation" gorm:"column:conversation;index"`
	Sender       string `json:"sender" gorm:"column:sender;index"`
	Recipient    string `json:"recipient" gorm:"column:recipient;index"`
	Data         string `json:"data" gorm:"column:data"`
}

// MessageStore is the durable side of the relay. Persist must complete
// before any live push is attempted; Fetch returns a conversation in send
// order and is the delivery path for recipients that were offline.
type MessageStore interface {
	Persist(m *Message) error
	Fetch(conversation string) ([]Message, error)
}

// ConversationKey names the conversation between two users. The key is the
// same whichever side sends.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

type dbStore struct {
	db *gorm.DB
}

func newDBStore() (*dbStore, error) {
	loglevel := logger.Error
	if DefConfig.DBLog {
		loglevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(DefConfig.DB), &gorm.Config{
		Logger: logger.New(zap.NewStdLog(zap.L()), logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      loglevel,
		}),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(new(Message)); err != nil {
		return nil, err
	}
	return &dbStore{db: db}, nil
}

func (s *dbStore) Persist(m *Message) error {
	return s.db.Create(m).Error
}

func (s *dbStore) Fetch(conversation string) ([]Message, error) {
	ms := []Message{}
	err := s.db.Where("conversation = ?", conversation).Order("id").Find(&ms).Error
	return ms, err
}
