package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sagip-cad/emergency-dispatch-api/databases/mocks"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

func TestGetOrCreate_DeterministicIDAndParticipants(t *testing.T) {
	cdb := &mocks.ConversationDatabase{}
	conversationID := models.ConversationID("e1", "t1")

	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID},
		mock.MatchedBy(func(update interface{}) bool {
			doc, ok := update.(bson.M)["$setOnInsert"].(models.Conversation)
			if !ok {
				return false
			}
			// reporter leads, duplicated membership collapses
			return doc.ID == conversationID &&
				doc.Type == "emergency_chat" &&
				doc.EmergencyStatus == models.StatusAssignedInProgress &&
				assert.ObjectsAreEqual([]string{"reporter-1", "m1", "m2"}, doc.Participants)
		}),
		mock.Anything).Return(matchedResult(1), nil)
	cdb.On("FindOne", mock.Anything, bson.M{"_id": conversationID}).
		Return(&models.Conversation{ID: conversationID}, nil)

	provisioner := &ConversationProvisioner{CDB: cdb}

	conversation, err := provisioner.GetOrCreate(context.Background(),
		"e1", "t1", "reporter-1", []string{"m1", "reporter-1", "m2", "m1", ""})
	assert.NoError(t, err)
	assert.Equal(t, conversationID, conversation.ID)
	cdb.AssertExpectations(t)
}

func TestGetOrCreate_SecondCallReturnsExisting(t *testing.T) {
	cdb := &mocks.ConversationDatabase{}
	conversationID := models.ConversationID("e1", "t1")
	existing := &models.Conversation{ID: conversationID, Participants: []string{"reporter-1", "m1"}}

	// the upsert matches the existing doc and $setOnInsert is a no-op
	cdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(matchedResult(1), nil)
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(existing, nil)

	provisioner := &ConversationProvisioner{CDB: cdb}

	first, err := provisioner.GetOrCreate(context.Background(), "e1", "t1", "reporter-1", []string{"m1"})
	assert.NoError(t, err)
	second, err := provisioner.GetOrCreate(context.Background(), "e1", "t1", "reporter-1", []string{"m1"})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAppendMessage_SenderRequired(t *testing.T) {
	provisioner := &ConversationProvisioner{}

	_, err := provisioner.AppendMessage(context.Background(), "c1", "", "hello")
	assert.ErrorIs(t, err, ErrActorRequired)
}

func TestAppendMessage_ConversationMissing(t *testing.T) {
	cdb := &mocks.ConversationDatabase{}
	cdb.On("FindOne", mock.Anything, bson.M{"_id": "c1"}).Return(nil, mongo.ErrNoDocuments)

	provisioner := &ConversationProvisioner{CDB: cdb}

	_, err := provisioner.AppendMessage(context.Background(), "c1", "m1", "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessage_UpdatesLastMessageInSameTransaction(t *testing.T) {
	cdb := &mocks.ConversationDatabase{}
	mdb := &mocks.MessageDatabase{}
	conversationID := models.ConversationID("e1", "t1")

	cdb.On("FindOne", mock.Anything, bson.M{"_id": conversationID}).
		Return(&models.Conversation{ID: conversationID}, nil)

	var inserted models.Message
	insertResult := &mocks.InsertOneResultHelper{}
	mdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.Message")).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).(models.Message)
		}).
		Return(insertResult, nil)

	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID},
		mock.MatchedBy(func(update interface{}) bool {
			set, ok := update.(bson.M)["$set"].(bson.M)
			if !ok {
				return false
			}
			summary, ok := set["lastMessage"].(models.MessageSummary)
			return ok && summary.Text == "on our way" && summary.SenderID == "m1"
		})).Return(matchedResult(1), nil)

	provisioner := &ConversationProvisioner{Client: passthroughClient(), CDB: cdb, MDB: mdb}

	messageID, err := provisioner.AppendMessage(context.Background(), conversationID, "m1", "on our way")
	assert.NoError(t, err)
	assert.NotEmpty(t, messageID)
	assert.Equal(t, messageID, inserted.ID)
	assert.Equal(t, conversationID, inserted.ConversationID)
	cdb.AssertExpectations(t)
	mdb.AssertExpectations(t)
}
