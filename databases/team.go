package databases

// go generate: mockery --name TeamDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sagip-cad/emergency-dispatch-api/models"
)

const teamName = "teams"

// TeamDatabase contains the methods to use with the teams collection
type TeamDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Team, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Team, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (UpdateResultHelper, error)
}

type teamDatabase struct {
	db DatabaseHelper
}

// NewTeamDatabase initializes a new instance of team database with the provided db connection
func NewTeamDatabase(db DatabaseHelper) TeamDatabase {
	return &teamDatabase{
		db: db,
	}
}

func (t *teamDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Team, error) {
	team := &models.Team{}
	err := t.db.Collection(teamName).FindOne(ctx, filter, opts...).Decode(&team)
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (t *teamDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Team, error) {
	var teams []models.Team
	cr, err := t.db.Collection(teamName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&teams)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (t *teamDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (UpdateResultHelper, error) {
	return t.db.Collection(teamName).UpdateOne(ctx, filter, update, opts...)
}
