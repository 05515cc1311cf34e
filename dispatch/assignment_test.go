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

func pendingEmergency() *models.Emergency {
	return &models.Emergency{
		ID:            "e1",
		Status:        models.StatusPending,
		EmergencyType: models.TypeFire,
		Department:    models.DepartmentFire,
		UserID:        "reporter-1",
	}
}

func fireTeam() *models.Team {
	return &models.Team{
		ID:         "t1",
		TeamName:   "Ladder 2",
		Department: models.DepartmentFire,
		MemberIDs:  []string{"m1", "m2"},
		Status:     models.TeamAvailable,
	}
}

func TestAssignTeam_ActorRequired(t *testing.T) {
	coordinator := &AssignmentCoordinator{}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "")
	assert.ErrorIs(t, err, ErrActorRequired)
}

func TestAssignTeam_EmergencyNotFound(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	edb.On("FindOne", mock.Anything, bson.M{"_id": "e1"}).Return(nil, mongo.ErrNoDocuments)

	coordinator := &AssignmentCoordinator{EDB: edb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignTeam_NotPending(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	emergency := pendingEmergency()
	emergency.Status = models.StatusAssignedInProgress
	edb.On("FindOne", mock.Anything, mock.Anything).Return(emergency, nil)

	tdb := &mocks.TeamDatabase{}
	coordinator := &AssignmentCoordinator{EDB: edb, TDB: tdb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrNotPending)
	tdb.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestAssignTeam_TeamNotFound(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)

	tdb := &mocks.TeamDatabase{}
	tdb.On("FindOne", mock.Anything, bson.M{"_id": "t1"}).Return(nil, mongo.ErrNoDocuments)

	coordinator := &AssignmentCoordinator{EDB: edb, TDB: tdb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignTeam_DepartmentMismatch(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)

	team := fireTeam()
	team.Department = models.DepartmentPolice
	tdb := &mocks.TeamDatabase{}
	tdb.On("FindOne", mock.Anything, mock.Anything).Return(team, nil)

	coordinator := &AssignmentCoordinator{EDB: edb, TDB: tdb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrDepartmentMismatch)
	edb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignTeam_EmptyTeam(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)

	team := fireTeam()
	team.MemberIDs = nil
	tdb := &mocks.TeamDatabase{}
	tdb.On("FindOne", mock.Anything, mock.Anything).Return(team, nil)

	coordinator := &AssignmentCoordinator{EDB: edb, TDB: tdb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrEmptyTeam)
}

func TestAssignTeam_Success(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	tdb := &mocks.TeamDatabase{}
	cdb := &mocks.ConversationDatabase{}
	mdb := &mocks.MessageDatabase{}

	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)
	tdb.On("FindOne", mock.Anything, mock.Anything).Return(fireTeam(), nil)

	// the emergency write compares against pending inside the transaction
	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusPending},
		mock.Anything).Return(matchedResult(1), nil)
	tdb.On("UpdateOne", mock.Anything, bson.M{"_id": "t1"}, mock.Anything).Return(matchedResult(1), nil)

	conversationID := models.ConversationID("e1", "t1")
	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID}, mock.Anything, mock.Anything).
		Return(matchedResult(1), nil)
	cdb.On("FindOne", mock.Anything, bson.M{"_id": conversationID}).
		Return(&models.Conversation{ID: conversationID}, nil)

	provisioner := &ConversationProvisioner{Client: passthroughClient(), CDB: cdb, MDB: mdb}
	coordinator := &AssignmentCoordinator{
		Client:      passthroughClient(),
		EDB:         edb,
		TDB:         tdb,
		Provisioner: provisioner,
	}

	assignment, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.NoError(t, err)
	assert.Equal(t, "e1", assignment.EmergencyID)
	assert.Equal(t, "t1", assignment.TeamID)
	assert.Equal(t, "Ladder 2", assignment.TeamName)
	assert.Equal(t, []string{"m1", "m2"}, assignment.Members)
	assert.Equal(t, "dispatcher-1", assignment.AssignedBy)
	assert.Equal(t, conversationID, assignment.ConversationID)

	edb.AssertExpectations(t)
	tdb.AssertExpectations(t)
	cdb.AssertExpectations(t)
}

func TestAssignTeam_ThenResolveReleasesTeam(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	tdb := &mocks.TeamDatabase{}
	cdb := &mocks.ConversationDatabase{}
	mdb := &mocks.MessageDatabase{}
	conversationID := models.ConversationID("e1", "t1")

	// the dispatcher picks up the pending report, then the team closes it out
	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil).Once()
	assigned := pendingEmergency()
	assigned.Status = models.StatusAssignedInProgress
	assigned.Team = &models.TeamAssignment{TeamID: "t1", TeamName: "Ladder 2", Members: []string{"m1", "m2"}}
	edb.On("FindOne", mock.Anything, mock.Anything).Return(assigned, nil)

	tdb.On("FindOne", mock.Anything, mock.Anything).Return(fireTeam(), nil)

	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusPending},
		mock.Anything).Return(matchedResult(1), nil).Once()
	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusAssignedInProgress},
		mock.Anything).Return(matchedResult(1), nil).Once()

	tdb.On("UpdateOne", mock.Anything, bson.M{"_id": "t1"}, mock.Anything).Return(matchedResult(1), nil)
	tdb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "t1", "activeEmergencies": bson.M{"$size": 0}},
		mock.Anything).Return(matchedResult(1), nil)

	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID}, mock.Anything, mock.Anything).
		Return(matchedResult(1), nil)
	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID}, mock.Anything).
		Return(matchedResult(1), nil)
	cdb.On("FindOne", mock.Anything, bson.M{"_id": conversationID}).
		Return(&models.Conversation{ID: conversationID}, nil)

	provisioner := &ConversationProvisioner{Client: passthroughClient(), CDB: cdb, MDB: mdb}
	coordinator := &AssignmentCoordinator{Client: passthroughClient(), EDB: edb, TDB: tdb, Provisioner: provisioner}
	engine := &TransitionEngine{Client: passthroughClient(), EDB: edb, TDB: tdb, CDB: cdb}

	assignment, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.NoError(t, err)
	assert.Equal(t, conversationID, assignment.ConversationID)

	err = engine.Transition(context.Background(), "e1", models.StatusResolved, "dispatcher-1", "fire out")
	assert.NoError(t, err)

	edb.AssertExpectations(t)
	tdb.AssertExpectations(t)
	cdb.AssertExpectations(t)
}

func TestAssignTeam_ConcurrentAssignsExactlyOneWins(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	tdb := &mocks.TeamDatabase{}
	cdb := &mocks.ConversationDatabase{}
	mdb := &mocks.MessageDatabase{}
	conversationID := models.ConversationID("e1", "t1")

	// both dispatchers read the emergency while it is still pending
	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)
	tdb.On("FindOne", mock.Anything, mock.Anything).Return(fireTeam(), nil)

	// the status compare-and-set admits exactly one writer
	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusPending},
		mock.Anything).Return(matchedResult(1), nil).Once()
	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusPending},
		mock.Anything).Return(matchedResult(0), nil)

	tdb.On("UpdateOne", mock.Anything, bson.M{"_id": "t1"}, mock.Anything).Return(matchedResult(1), nil)
	cdb.On("UpdateOne", mock.Anything, bson.M{"_id": conversationID}, mock.Anything, mock.Anything).
		Return(matchedResult(1), nil)
	cdb.On("FindOne", mock.Anything, bson.M{"_id": conversationID}).
		Return(&models.Conversation{ID: conversationID}, nil)

	provisioner := &ConversationProvisioner{Client: passthroughClient(), CDB: cdb, MDB: mdb}
	coordinator := &AssignmentCoordinator{Client: passthroughClient(), EDB: edb, TDB: tdb, Provisioner: provisioner}

	first, firstErr := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	second, secondErr := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-2")

	assert.NoError(t, firstErr)
	assert.Equal(t, "dispatcher-1", first.AssignedBy)
	assert.Nil(t, second)
	assert.ErrorIs(t, secondErr, ErrNotPending)
	// the loser must not have touched the team
	tdb.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestAssignTeam_RaceLoserLeavesNoTrace(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	tdb := &mocks.TeamDatabase{}

	edb.On("FindOne", mock.Anything, mock.Anything).Return(pendingEmergency(), nil)
	tdb.On("FindOne", mock.Anything, mock.Anything).Return(fireTeam(), nil)

	// the winner already flipped the status, our compare-and-set misses
	edb.On("UpdateOne", mock.Anything,
		bson.M{"_id": "e1", "status": models.StatusPending},
		mock.Anything).Return(matchedResult(0), nil)

	coordinator := &AssignmentCoordinator{Client: passthroughClient(), EDB: edb, TDB: tdb}

	_, err := coordinator.AssignTeam(context.Background(), "e1", "t1", "dispatcher-1")
	assert.ErrorIs(t, err, ErrNotPending)
	tdb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}
