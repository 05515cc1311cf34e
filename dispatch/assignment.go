package dispatch

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// Assignment is returned to the dispatcher after a successful team
// assignment
type Assignment struct {
	EmergencyID    string             `json:"emergencyId"`
	TeamID         string             `json:"teamId"`
	TeamName       string             `json:"teamName"`
	Members        []string           `json:"members"`
	AssignedAt     primitive.DateTime `json:"assignedAt"`
	AssignedBy     string             `json:"assignedBy"`
	ConversationID string             `json:"conversationId"`
}

// AssignmentCoordinator orchestrates the pending -> assigned_in_progress
// transition across the emergency, the team and the conversation in one
// multi-document transaction.
type AssignmentCoordinator struct {
	Client      databases.ClientHelper
	EDB         databases.EmergencyDatabase
	TDB         databases.TeamDatabase
	Provisioner *ConversationProvisioner
}

// AssignTeam assigns teamID to a pending emergency on behalf of actor.
// If two assignments race on the same emergency exactly one commits; the
// loser gets ErrNotPending and leaves no trace. The guard is a
// compare-and-set on status inside the transaction, not the precondition
// read, so a stale read can never overwrite the winner.
func (a *AssignmentCoordinator) AssignTeam(ctx context.Context, emergencyID, teamID, actor string) (*Assignment, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}

	emergency, err := a.EDB.FindOne(ctx, bson.M{"_id": emergencyID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if emergency.Status != models.StatusPending {
		return nil, ErrNotPending
	}

	team, err := a.TDB.FindOne(ctx, bson.M{"_id": teamID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if team.Department != emergency.Department {
		return nil, ErrDepartmentMismatch
	}
	if len(team.MemberIDs) == 0 {
		return nil, ErrEmptyTeam
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	members := append([]string(nil), team.MemberIDs...)
	assignment := models.TeamAssignment{
		TeamID:     team.ID,
		TeamName:   team.TeamName,
		Department: team.Department,
		Members:    members,
		AssignedAt: now,
		AssignedBy: actor,
	}
	change := models.StatusChange{
		Status:    models.StatusAssignedInProgress,
		Timestamp: now,
		ChangedBy: actor,
	}

	err = a.Client.WithTransaction(ctx, func(sc context.Context) error {
		res, err := a.EDB.UpdateOne(sc,
			bson.M{"_id": emergencyID, "status": models.StatusPending},
			bson.M{
				"$set": bson.M{
					"status":    models.StatusAssignedInProgress,
					"team":      assignment,
					"updatedAt": now,
				},
				"$push": bson.M{"statusHistory": change},
			})
		if err != nil {
			return err
		}
		if res.MatchedCount() == 0 {
			// lost the race, abort with zero mutations
			return ErrNotPending
		}

		res, err = a.TDB.UpdateOne(sc,
			bson.M{"_id": teamID},
			bson.M{
				"$addToSet": bson.M{"activeEmergencies": emergencyID},
				"$set":      bson.M{"status": models.TeamActive, "updatedAt": now},
			})
		if err != nil {
			return err
		}
		if res.MatchedCount() == 0 {
			return ErrNotFound
		}

		_, err = a.Provisioner.GetOrCreate(sc, emergencyID, teamID, emergency.UserID, members)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Assignment{
		EmergencyID:    emergencyID,
		TeamID:         team.ID,
		TeamName:       team.TeamName,
		Members:        members,
		AssignedAt:     now,
		AssignedBy:     actor,
		ConversationID: models.ConversationID(emergencyID, teamID),
	}, nil
}
