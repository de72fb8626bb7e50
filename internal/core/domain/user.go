package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the already-authenticated identity a caller supplies with every
// invocation. The engine authorizes actions against it; it never
// authenticates it.
type Actor struct {
	ID   string
	Role Role
}
