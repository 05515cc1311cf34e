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

// successors is the only legal status graph. pending moves to
// assigned_in_progress exclusively through the assignment coordinator,
// which is why the transition engine's own table starts at
// assigned_in_progress.
var successors = map[string]map[string]bool{
	models.StatusPending: {
		models.StatusAssignedInProgress: true,
	},
	models.StatusAssignedInProgress: {
		models.StatusResolved:  true,
		models.StatusCancelled: true,
	},
}

func isTerminal(status string) bool {
	return status == models.StatusResolved || status == models.StatusCancelled
}

// TransitionEngine validates and applies every status transition other
// than the initial team assignment. Terminal transitions also release the
// assigned team; the emergency and team mutations commit as one
// transaction.
type TransitionEngine struct {
	Client databases.ClientHelper
	EDB    databases.EmergencyDatabase
	TDB    databases.TeamDatabase
	CDB    databases.ConversationDatabase
}

// Transition moves an emergency to targetStatus on behalf of actor,
// appending to the status history. notes may be empty.
func (t *TransitionEngine) Transition(ctx context.Context, emergencyID, targetStatus, actor, notes string) error {
	if actor == "" {
		return ErrActorRequired
	}

	emergency, err := t.EDB.FindOne(ctx, bson.M{"_id": emergencyID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}

	if !successors[emergency.Status][targetStatus] {
		return ErrInvalidTransition
	}
	// the assignment path carries team data and must go through the coordinator
	if targetStatus == models.StatusAssignedInProgress {
		return ErrInvalidTransition
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	change := models.StatusChange{
		Status:    targetStatus,
		Timestamp: now,
		ChangedBy: actor,
		Notes:     notes,
	}

	return t.Client.WithTransaction(ctx, func(sc context.Context) error {
		set := bson.M{
			"status":    targetStatus,
			"updatedAt": now,
		}
		if isTerminal(targetStatus) {
			set["resolvedAt"] = now
		}

		// compare-and-set on the status read above: a concurrent transition
		// aborts this one instead of silently stacking on top of it
		res, err := t.EDB.UpdateOne(sc,
			bson.M{"_id": emergencyID, "status": emergency.Status},
			bson.M{
				"$set":  set,
				"$push": bson.M{"statusHistory": change},
			})
		if err != nil {
			return err
		}
		if res.MatchedCount() == 0 {
			return ErrInvalidTransition
		}

		if isTerminal(targetStatus) && emergency.Team != nil {
			if err := t.releaseTeam(sc, emergency.Team.TeamID, emergencyID, now); err != nil {
				return err
			}
			// keep the conversation's display status in step with the emergency
			_, err = t.CDB.UpdateOne(sc,
				bson.M{"_id": models.ConversationID(emergencyID, emergency.Team.TeamID)},
				bson.M{"$set": bson.M{"emergencyStatus": targetStatus, "updatedAt": now}})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// releaseTeam removes the emergency from the team's active set and flips
// the team back to available iff that was its last active emergency.
func (t *TransitionEngine) releaseTeam(sc context.Context, teamID, emergencyID string, now primitive.DateTime) error {
	res, err := t.TDB.UpdateOne(sc,
		bson.M{"_id": teamID},
		bson.M{
			"$pull": bson.M{"activeEmergencies": emergencyID},
			"$set":  bson.M{"updatedAt": now},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount() == 0 {
		return ErrNotFound
	}

	_, err = t.TDB.UpdateOne(sc,
		bson.M{"_id": teamID, "activeEmergencies": bson.M{"$size": 0}},
		bson.M{"$set": bson.M{"status": models.TeamAvailable}})
	return err
}
