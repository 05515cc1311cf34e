package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Team statuses. A team is active while it has at least one emergency in
// progress and available otherwise.
const (
	TeamAvailable = "available"
	TeamActive    = "active"
)

// Team holds the structure for the teams collection in mongo.
// Identity and membership fields are owned by the admin flows; the
// activeEmergencies set and status are owned exclusively by the
// assignment coordinator and the transition engine.
type Team struct {
	ID                string             `json:"_id" bson:"_id"`
	TeamName          string             `json:"teamName" bson:"teamName"`
	Department        string             `json:"department" bson:"department"`
	MemberIDs         []string           `json:"memberIds" bson:"memberIds"`
	ActiveEmergencies []string           `json:"activeEmergencies" bson:"activeEmergencies"`
	Status            string             `json:"status" bson:"status"`
	UpdatedAt         primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
