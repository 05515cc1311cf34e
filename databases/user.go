package databases

// go generate: mockery --name UserDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sagip-cad/emergency-dispatch-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the users collection.
// The collection is read-only from this service; writes belong to the
// admin flows.
type UserDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.UserSummary, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.UserSummary, error)
	FindByIDs(context.Context, []string) ([]models.UserSummary, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.UserSummary, error) {
	user := &models.UserSummary{}
	err := u.db.Collection(userName).FindOne(ctx, filter, opts...).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.UserSummary, error) {
	var users []models.UserSummary
	cr, err := u.db.Collection(userName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// FindByIDs fetches directory entries for the given ids in one batched
// query. Missing ids are simply absent from the result.
func (u *userDatabase) FindByIDs(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}
	return u.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}
