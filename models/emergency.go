package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Emergency statuses. Transitions are validated by dispatch.TransitionEngine;
// the constants here are the only values ever persisted.
const (
	StatusPending            = "pending"
	StatusAssignedInProgress = "assigned_in_progress"
	StatusResolved           = "resolved"
	StatusCancelled          = "cancelled"
)

// Emergency holds the structure for the emergencies collection in mongo
type Emergency struct {
	ID            string             `json:"_id" bson:"_id"`
	Status        string             `json:"status" bson:"status"`
	EmergencyType string             `json:"emergencyType" bson:"emergencyType"`
	Department    string             `json:"department" bson:"department"`
	UserID        string             `json:"userId" bson:"userId"`
	UserName      string             `json:"userName,omitempty" bson:"userName,omitempty"`
	Description   string             `json:"description,omitempty" bson:"description,omitempty"`
	Location      *Location          `json:"location,omitempty" bson:"location,omitempty"`
	Media         *Media             `json:"media,omitempty" bson:"media,omitempty"`
	Team          *TeamAssignment    `json:"team,omitempty" bson:"team,omitempty"`
	StatusHistory []StatusChange     `json:"statusHistory" bson:"statusHistory"`
	ResolvedAt    *primitive.DateTime `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	CreatedAt     primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt     primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// StatusChange is a single entry in the append-only status history of an
// emergency. Entries are never edited or removed once written.
type StatusChange struct {
	Status    string             `json:"status" bson:"status"`
	Timestamp primitive.DateTime `json:"timestamp" bson:"timestamp"`
	ChangedBy string             `json:"changedBy" bson:"changedBy"`
	Notes     string             `json:"notes,omitempty" bson:"notes,omitempty"`
}

// TeamAssignment is the denormalized team snapshot embedded in an emergency
// once a dispatcher assigns a team. Members is the membership as of
// assignment time and is not revisited if the team roster changes later.
type TeamAssignment struct {
	TeamID     string             `json:"teamId" bson:"teamId"`
	TeamName   string             `json:"teamName" bson:"teamName"`
	Department string             `json:"department" bson:"department"`
	Members    []string           `json:"members" bson:"members"`
	AssignedAt primitive.DateTime `json:"assignedAt" bson:"assignedAt"`
	AssignedBy string             `json:"assignedBy" bson:"assignedBy"`
}

// Location holds the reported position of an emergency
type Location struct {
	Coordinates []float64 `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	Street      string    `json:"street,omitempty" bson:"street,omitempty"`
	Barangay    string    `json:"barangay,omitempty" bson:"barangay,omitempty"`
	City        string    `json:"city,omitempty" bson:"city,omitempty"`
	Province    string    `json:"province,omitempty" bson:"province,omitempty"`
	Landmark    string    `json:"landmark,omitempty" bson:"landmark,omitempty"`
}

// Media holds attachment urls uploaded by the reporting flow
type Media struct {
	Images []string `json:"images,omitempty" bson:"images,omitempty"`
	Audio  string   `json:"audio,omitempty" bson:"audio,omitempty"`
	Video  string   `json:"video,omitempty" bson:"video,omitempty"`
}

// EmergencyView is an emergency enriched with the reporter's directory
// entry, as emitted to dispatcher clients. UserInfo is nil when the
// directory lookup failed or the reporter id is unknown.
type EmergencyView struct {
	Emergency `bson:",inline"`
	UserInfo  *UserSummary `json:"userInfo,omitempty" bson:"-"`
}
