package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/config"
	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// Conversation exported for testing purposes
type Conversation struct {
	DB          databases.ConversationDatabase
	MDB         databases.MessageDatabase
	Provisioner *dispatch.ConversationProvisioner
}

var errEmptyMessage = errors.New("empty message text")

// ConversationByIDHandler returns a conversation by its deterministic id
func (c Conversation) ConversationByIDHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation_id"]

	zap.S().Debugf("conversation_id: %v", conversationID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": conversationID})
	if err != nil {
		config.ErrorStatus("failed to get conversation by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ConversationMessagesHandler returns the messages of a conversation
// ordered by sentAt ascending
func (c Conversation) ConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.MDB.Find(ctx,
		bson.M{"conversationId": conversationID},
		&options.FindOptions{Sort: bson.D{{Key: "sentAt", Value: 1}}})
	if err != nil {
		config.ErrorStatus("failed to get conversation messages", http.StatusNotFound, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Message{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SendMessageHandler appends a message to a conversation on behalf of the
// calling user
func (c Conversation) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation_id"]

	var requestBody struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Text == "" {
		config.ErrorStatus("text is required", http.StatusBadRequest, w, errEmptyMessage)
		return
	}

	actor, _ := api.ActorFromContext(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	messageID, err := c.Provisioner.AppendMessage(ctx, conversationID, actor.ID, requestBody.Text)
	if err != nil {
		config.ErrorStatus("failed to send message", dispatchStatusCode(err), w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Message sent successfully",
		"messageId": messageID,
	})
}

// MemberConversationsHandler returns the emergency chats a user takes part
// in, most recently active first
func (c Conversation) MemberConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.Find(ctx,
		bson.M{"participants": userID, "type": "emergency_chat"},
		&options.FindOptions{Sort: bson.D{{Key: "updatedAt", Value: -1}}})
	if err != nil {
		config.ErrorStatus("failed to get member conversations", http.StatusNotFound, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Conversation{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
