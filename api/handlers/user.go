package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/config"
	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

// FetchUsersByIdsHandler returns directory entries for a batch of user
// ids. Missing ids are simply omitted from the response.
func (u User) FetchUsersByIdsHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := u.DB.FindByIDs(ctx, requestBody.IDs)
	if err != nil {
		config.ErrorStatus("failed to get users by ids", http.StatusNotFound, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.UserSummary{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
