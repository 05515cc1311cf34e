package dispatch

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// Predicate is the visibility rule derived from a viewer's role. It is
// applied server-side at the query and subscription boundary so records
// outside the viewer's department are never materialized for them.
type Predicate struct {
	// All means no filtering at all (super admin)
	All bool
	// Denied means nothing is visible. Unrecognized roles land here.
	Denied bool
	// Department and EmergencyType are the canonical codes the viewer is
	// allowed to see when neither All nor Denied is set
	Department    string
	EmergencyType string
}

// VisibilityPredicate maps a role to its visibility predicate. Every
// department-scoped role resolves to exactly one department and one
// emergency type; anything not in the known role set is denied outright.
// The department argument is kept for call-site symmetry but the role is
// authoritative: a police_admin sees PNP traffic regardless of what the
// directory says their department is.
func VisibilityPredicate(role, department string) Predicate {
	_ = department

	switch role {
	case models.RoleSuperAdmin:
		return Predicate{All: true}
	case models.RolePoliceAdmin, models.RolePoliceResponder:
		return Predicate{Department: models.DepartmentPolice, EmergencyType: models.TypePolice}
	case models.RoleFireAdmin, models.RoleFireResponder:
		return Predicate{Department: models.DepartmentFire, EmergencyType: models.TypeFire}
	case models.RoleMedicalAdmin, models.RoleMedicalResponder:
		return Predicate{Department: models.DepartmentMedical, EmergencyType: models.TypeMedical}
	default:
		// fail closed, never open
		return Predicate{Denied: true}
	}
}

// Filter renders the predicate as a server-side mongo filter. Callers must
// check Denied before querying; a denied predicate has no filter because
// the query must not run at all.
func (p Predicate) Filter() bson.M {
	if p.All || p.Denied {
		return bson.M{}
	}
	return bson.M{
		"department":    p.Department,
		"emergencyType": p.EmergencyType,
	}
}
