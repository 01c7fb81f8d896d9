package model

import "time"

// Roles recognized by the access policy.  They are stored as lowercase
// strings in the users.role column and carried in the JWT "role" claim.
const (
	RoleAdmin     = "admin"     // full administration
	RoleGestor    = "gestor"    // fleet manager, read access to all records
	RoleOperador  = "operador"  // operations staff, read access to all records
	RoleMotorista = "motorista" // driver, owns usage controls
)

// Account statuses.  New registrations start as pending and must be
// activated by an administrator before login is accepted.
const (
	AccountPending  = "pending"
	AccountActive   = "active"
	AccountInactive = "inactive"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The json tags are omitted
// here because these structs are used internally by the repository layer;
// handlers define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Registration – unique employee registration number (matrícula).
//  Name         – display name.
//  Email        – unique email address.
//  Phone        – optional contact phone.
//  Unit         – organizational unit the user belongs to.
//  AvatarLink   – relative path of the stored avatar image, if any.
//  Status       – account status (pending, active, inactive).
//  Role         – access role (admin, gestor, operador, motorista).
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // users.id
	Registration string     // users.registration
	Name         string     // users.name
	Email        string     // users.email
	Phone        *string    // users.phone (nullable)
	Unit         *string    // users.unit (nullable)
	AvatarLink   *string    // users.avatar_link (nullable)
	Status       string     // users.status
	Role         string     // users.role
	PasswordHash string     // users.password_hash
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// ValidRole reports whether s is one of the recognized roles.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleGestor, RoleOperador, RoleMotorista:
		return true
	}
	return false
}

// IsStaff reports whether the role may read records owned by other users.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleGestor || role == RoleOperador
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
