package models

// Dispatcher and responder roles recognized by the role filter policy.
// Any value outside this set resolves to the deny-all predicate.
const (
	RoleSuperAdmin       = "super_admin"
	RolePoliceAdmin      = "police_admin"
	RoleFireAdmin        = "fire_admin"
	RoleMedicalAdmin     = "medical_admin"
	RolePoliceResponder  = "police_responder"
	RoleFireResponder    = "fire_responder"
	RoleMedicalResponder = "medical_responder"
)

// Canonical department codes of the three responding agencies
const (
	DepartmentPolice  = "PNP"
	DepartmentFire    = "BFP"
	DepartmentMedical = "MDDRMO"
)

// Emergency type codes, one per department
const (
	TypePolice  = "police"
	TypeFire    = "fire"
	TypeMedical = "medical"
)

// UserSummary holds the directory entry for a user as stored in the users
// collection. The collection is owned by the out-of-scope admin flows;
// this service only reads it for identity enrichment.
type UserSummary struct {
	ID         string `json:"_id" bson:"_id"`
	Name       string `json:"name" bson:"name"`
	Email      string `json:"email,omitempty" bson:"email,omitempty"`
	Phone      string `json:"phone,omitempty" bson:"phone,omitempty"`
	Role       string `json:"role,omitempty" bson:"role,omitempty"`
	Department string `json:"department,omitempty" bson:"department,omitempty"`
	Status     string `json:"status,omitempty" bson:"status,omitempty"`
}
