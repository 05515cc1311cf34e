package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationID builds the deterministic conversation key for an
// (emergency, team) pair. A conversation exists iff that assignment was
// made, so the key doubles as the idempotency guard.
func ConversationID(emergencyID, teamID string) string {
	return fmt.Sprintf("emergency_%s_team_%s", emergencyID, teamID)
}

// Conversation holds the structure for the conversations collection in mongo
type Conversation struct {
	ID              string             `json:"_id" bson:"_id"`
	EmergencyID     string             `json:"emergencyId" bson:"emergencyId"`
	TeamID          string             `json:"teamId" bson:"teamId"`
	Participants    []string           `json:"participants" bson:"participants"`
	Type            string             `json:"type" bson:"type"`
	EmergencyStatus string             `json:"emergencyStatus" bson:"emergencyStatus"`
	LastMessage     *MessageSummary    `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	CreatedAt       primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt       primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// Message holds the structure for the messages collection in mongo,
// ordered by sentAt within a conversation
type Message struct {
	ID             string             `json:"_id" bson:"_id"`
	ConversationID string             `json:"conversationId" bson:"conversationId"`
	SenderID       string             `json:"senderId" bson:"senderId"`
	Text           string             `json:"text" bson:"text"`
	SentAt         primitive.DateTime `json:"sentAt" bson:"sentAt"`
}

// MessageSummary is the denormalized last-message preview stored on the
// conversation document. It is updated in the same transaction as the
// message insert so it never lags the message list.
type MessageSummary struct {
	Text     string             `json:"text" bson:"text"`
	SenderID string             `json:"senderId" bson:"senderId"`
	SentAt   primitive.DateTime `json:"sentAt" bson:"sentAt"`
}
