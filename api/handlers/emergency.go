package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/config"
	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// Page stores the page number for pagination
var Page int

// Emergency exported for testing purposes
type Emergency struct {
	DB          databases.EmergencyDatabase
	UDB         databases.UserDatabase
	Coordinator *dispatch.AssignmentCoordinator
	Engine      *dispatch.TransitionEngine
}

type createEmergencyRequest struct {
	EmergencyType string           `json:"emergencyType"`
	Department    string           `json:"department"`
	UserID        string           `json:"userId"`
	UserName      string           `json:"userName"`
	Description   string           `json:"description"`
	Location      *models.Location `json:"location"`
	Media         *models.Media    `json:"media"`
}

var validDepartments = map[string]bool{
	models.DepartmentPolice:  true,
	models.DepartmentFire:    true,
	models.DepartmentMedical: true,
}

var validEmergencyTypes = map[string]bool{
	models.TypePolice:  true,
	models.TypeFire:    true,
	models.TypeMedical: true,
}

// CreateEmergencyHandler creates a new emergency report. Status is always
// forced to pending regardless of the payload.
func (e Emergency) CreateEmergencyHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody createEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	actor, _ := api.ActorFromContext(r.Context())
	reporterID := requestBody.UserID
	if reporterID == "" {
		reporterID = actor.ID
	}

	if !validDepartments[requestBody.Department] {
		config.ErrorStatus("invalid department", http.StatusBadRequest, w, errors.New(requestBody.Department))
		return
	}
	if !validEmergencyTypes[requestBody.EmergencyType] {
		config.ErrorStatus("invalid emergency type", http.StatusBadRequest, w, errors.New(requestBody.EmergencyType))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	newEmergency := models.Emergency{
		ID:            primitive.NewObjectID().Hex(),
		Status:        models.StatusPending,
		EmergencyType: requestBody.EmergencyType,
		Department:    requestBody.Department,
		UserID:        reporterID,
		UserName:      requestBody.UserName,
		Description:   requestBody.Description,
		Location:      requestBody.Location,
		Media:         requestBody.Media,
		StatusHistory: []models.StatusChange{{
			Status:    models.StatusPending,
			Timestamp: now,
			ChangedBy: reporterID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if _, err := e.DB.InsertOne(ctx, newEmergency); err != nil {
		config.ErrorStatus("failed to create emergency", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":     "Emergency created successfully",
		"emergencyId": newEmergency.ID,
	})
}

// EmergenciesHandler returns the role-filtered emergency list for the
// calling dispatcher, newest first, enriched with reporter info
func (e Emergency) EmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := api.ActorFromContext(r.Context())

	predicate := dispatch.VisibilityPredicate(actor.Role, actor.Department)
	if predicate.Denied {
		// unknown role sees nothing rather than everything
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]models.EmergencyView{})
		return
	}

	filter := predicate.Filter()
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = dispatch.DefaultSnapshotLimit
	}
	limit64 := int64(limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * limit)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := e.DB.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "createdAt", Value: -1}},
		Limit: &limit64,
		Skip:  &skip64,
	})
	if err != nil {
		config.ErrorStatus("failed to get emergencies", http.StatusNotFound, w, err)
		return
	}

	views := e.enrich(r, dbResp)
	b, err := json.Marshal(views)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EmergencyByIDHandler returns an emergency by ID with reporter info
func (e Emergency) EmergencyByIDHandler(w http.ResponseWriter, r *http.Request) {
	emergencyID := mux.Vars(r)["emergency_id"]

	zap.S().Debugf("emergency_id: %v", emergencyID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": emergencyID})
	if err != nil {
		config.ErrorStatus("failed to get emergency by ID", http.StatusNotFound, w, err)
		return
	}

	views := e.enrich(r, []models.Emergency{*dbResp})
	b, err := json.Marshal(views[0])
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AssignTeamHandler assigns a team to a pending emergency
func (e Emergency) AssignTeamHandler(w http.ResponseWriter, r *http.Request) {
	emergencyID := mux.Vars(r)["emergency_id"]

	var requestBody struct {
		TeamID string `json:"teamId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.TeamID == "" {
		config.ErrorStatus("teamId is required", http.StatusBadRequest, w, errors.New("missing teamId"))
		return
	}

	actor, _ := api.ActorFromContext(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	assignment, err := e.Coordinator.AssignTeam(ctx, emergencyID, requestBody.TeamID, actor.ID)
	if err != nil {
		config.ErrorStatus("failed to assign team", dispatchStatusCode(err), w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    "Team assigned successfully",
		"assignment": assignment,
	})
}

// UpdateStatusHandler applies a status transition to an emergency
func (e Emergency) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	emergencyID := mux.Vars(r)["emergency_id"]

	var requestBody struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	actor, _ := api.ActorFromContext(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := e.Engine.Transition(ctx, emergencyID, requestBody.Status, actor.ID, requestBody.Notes)
	if err != nil {
		config.ErrorStatus("failed to update emergency status", dispatchStatusCode(err), w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Emergency status updated successfully",
	})
}

// enrich resolves reporter directory entries for a batch of emergencies in
// a single lookup. A directory failure degrades to the raw ids.
func (e Emergency) enrich(r *http.Request, emergencies []models.Emergency) []models.EmergencyView {
	ids := make([]string, 0, len(emergencies))
	for i := range emergencies {
		ids = append(ids, emergencies[i].UserID)
	}

	userMap := map[string]*models.UserSummary{}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	users, err := e.UDB.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		zap.S().Warnw("failed to enrich reporter info", "error", err)
	} else {
		for i := range users {
			userMap[users[i].ID] = &users[i]
		}
	}

	views := make([]models.EmergencyView, 0, len(emergencies))
	for i := range emergencies {
		views = append(views, models.EmergencyView{
			Emergency: emergencies[i],
			UserInfo:  userMap[emergencies[i].UserID],
		})
	}
	return views
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// dispatchStatusCode maps dispatch errors onto http status codes
func dispatchStatusCode(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNotPending),
		errors.Is(err, dispatch.ErrInvalidTransition),
		errors.Is(err, dispatch.ErrDepartmentMismatch),
		errors.Is(err, dispatch.ErrEmptyTeam):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrActorRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// getPage returns the requested page or zero when absent/invalid
func getPage(page int, r *http.Request) int {
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed >= 0 {
			return parsed
		}
		zap.S().Warnf("page not set, using default of %v", 0)
	}
	return 0
}
