package auth

// Role orders access to the transmission pipeline: viewers read previews and
// transmission state, operators run batches, admins additionally regenerate
// artifacts and pull exports.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Unknown roles rank zero and satisfy nothing.
var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole maps a raw token claim to a known role.
func NormalizeRole(value string) (Role, bool) {
	r := Role(value)
	if _, ok := roleRank[r]; !ok {
		return "", false
	}
	return r, true
}

// RoleAtLeast reports whether role grants at least the required level.
func RoleAtLeast(role, required Role) bool {
	return roleRank[role] >= roleRank[required]
}
