package model

// Roles accepted by the ledger.
const (
	RoleAdmin       = "admin"
	RoleCashier     = "cashier"
	RoleMaintenance = "maintenance"
)

// Identity is the already-authenticated caller of a ledger operation.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// System is the identity used for changes the ledger makes on its own,
// such as provider webhooks.
var System = Identity{Username: "system", Role: RoleMaintenance}
