package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

const conversationType = "emergency_chat"

// ConversationProvisioner creates the per-(emergency, team) message
// channel when a team is assigned and appends messages to it afterwards.
type ConversationProvisioner struct {
	Client databases.ClientHelper
	CDB    databases.ConversationDatabase
	MDB    databases.MessageDatabase
}

// GetOrCreate provisions the conversation for an (emergency, team) pair.
// The id is deterministic and creation uses an upsert with $setOnInsert,
// so repeated calls return the same conversation and never duplicate it.
// Participants are the reporter plus the member snapshot taken at
// assignment time; later roster changes do not revisit the list.
func (p *ConversationProvisioner) GetOrCreate(ctx context.Context, emergencyID, teamID, reporterID string, memberIDs []string) (*models.Conversation, error) {
	id := models.ConversationID(emergencyID, teamID)
	now := primitive.NewDateTimeFromTime(time.Now())

	seen := map[string]bool{}
	participants := make([]string, 0, len(memberIDs)+1)
	for _, pid := range append([]string{reporterID}, memberIDs...) {
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true
		participants = append(participants, pid)
	}

	_, err := p.CDB.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": models.Conversation{
			ID:              id,
			EmergencyID:     emergencyID,
			TeamID:          teamID,
			Participants:    participants,
			Type:            conversationType,
			EmergencyStatus: models.StatusAssignedInProgress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	return p.CDB.FindOne(ctx, bson.M{"_id": id})
}

// AppendMessage inserts a message with a server-side timestamp and updates
// the conversation's lastMessage summary in the same transaction, so no
// reader ever observes a conversation whose preview lags its messages.
func (p *ConversationProvisioner) AppendMessage(ctx context.Context, conversationID, senderID, text string) (string, error) {
	if senderID == "" {
		return "", ErrActorRequired
	}

	_, err := p.CDB.FindOne(ctx, bson.M{"_id": conversationID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", ErrNotFound
		}
		return "", err
	}

	message := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		SentAt:         primitive.NewDateTimeFromTime(time.Now()),
	}

	err = p.Client.WithTransaction(ctx, func(sc context.Context) error {
		if _, err := p.MDB.InsertOne(sc, message); err != nil {
			return err
		}
		_, err := p.CDB.UpdateOne(sc,
			bson.M{"_id": conversationID},
			bson.M{"$set": bson.M{
				"lastMessage": models.MessageSummary{
					Text:     message.Text,
					SenderID: message.SenderID,
					SentAt:   message.SentAt,
				},
				"updatedAt": message.SentAt,
			}})
		return err
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}
