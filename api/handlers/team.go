package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/config"
	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// Team exported for testing purposes
type Team struct {
	DB databases.TeamDatabase
}

var errBadDepartment = errors.New("no department in query or token")

// AvailableTeamsHandler returns teams a dispatcher may assign: same
// department, not off rotation, at least one member. Department defaults
// to the caller's own visibility when the query param is absent; a super
// admin must pass it explicitly.
func (t Team) AvailableTeamsHandler(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	if department == "" {
		actor, _ := api.ActorFromContext(r.Context())
		predicate := dispatch.VisibilityPredicate(actor.Role, actor.Department)
		if predicate.Denied || predicate.All {
			config.ErrorStatus("department is required", http.StatusBadRequest, w, errBadDepartment)
			return
		}
		department = predicate.Department
	}

	zap.S().Debugf("department: '%v'", department)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := t.DB.Find(ctx, bson.M{"department": department})
	if err != nil {
		config.ErrorStatus("failed to get teams", http.StatusNotFound, w, err)
		return
	}

	// team docs written by older admin tooling carry loose status strings,
	// filter in code the same way the dispatch drawer always has
	available := []models.Team{}
	for _, team := range dbResp {
		if len(team.MemberIDs) == 0 {
			continue
		}
		switch team.Status {
		case models.TeamAvailable, models.TeamActive, "":
			available = append(available, team)
		}
	}

	b, err := json.Marshal(available)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
