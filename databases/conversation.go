package databases

// go generate: mockery --name ConversationDatabase --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sagip-cad/emergency-dispatch-api/models"
)

const (
	conversationName = "conversations"
	messageName      = "messages"
)

// ConversationDatabase contains the methods to use with the conversations collection
type ConversationDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Conversation, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Conversation, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (UpdateResultHelper, error)
}

// MessageDatabase contains the methods to use with the messages collection
type MessageDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Message, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
}

type conversationDatabase struct {
	db DatabaseHelper
}

// NewConversationDatabase initializes a new instance of conversation database with the provided db connection
func NewConversationDatabase(db DatabaseHelper) ConversationDatabase {
	return &conversationDatabase{
		db: db,
	}
}

func (c *conversationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := c.db.Collection(conversationName).FindOne(ctx, filter, opts...).Decode(&conversation)
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (c *conversationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Conversation, error) {
	var conversations []models.Conversation
	cr, err := c.db.Collection(conversationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&conversations)
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (c *conversationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (UpdateResultHelper, error) {
	return c.db.Collection(conversationName).UpdateOne(ctx, filter, update, opts...)
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	var messages []models.Message
	cr, err := m.db.Collection(messageName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *messageDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(messageName).InsertOne(ctx, document, opts...)
}
