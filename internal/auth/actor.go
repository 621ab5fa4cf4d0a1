package auth

// RoleAdmin is the default elevated role allowed to modify any listing
const RoleAdmin = "admin"

// Actor is the authenticated caller of a mutating request
type Actor struct {
	ID   string
	Role string

	adminRole string
}

// NewActor builds an actor whose admin check compares against adminRole
func NewActor(id, role, adminRole string) Actor {
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	return Actor{ID: id, Role: role, adminRole: adminRole}
}

// IsAdmin reports whether the actor holds the elevated role
func (a Actor) IsAdmin() bool {
	adminRole := a.adminRole
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	return a.Role == adminRole
}

// CanModify reports whether the actor may change a resource owned by ownerID
func (a Actor) CanModify(ownerID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.ID != "" && a.ID == ownerID
}
