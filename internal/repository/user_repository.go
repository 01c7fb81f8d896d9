package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")
var ErrRegistrationExists = errors.New("registration already exists")

const userColumns = "id,registration,name,email,phone,unit,avatar_link,status,role,password_hash,created_at,updated_at"

// Create inserts a user and returns its ID. New accounts default to the
// pending status and must be activated by an administrator.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Registration = strings.TrimSpace(u.Registration)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (registration, name, email, phone, unit, status, role, password_hash) VALUES (?,?,?,?,?,?,?,?)",
		u.Registration, u.Name, u.Email, u.Phone, u.Unit, u.Status, u.Role, hash)
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "1062") {
			if strings.Contains(low, "registration") {
				return 0, ErrRegistrationExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var phone, unit, avatar sql.NullString
	err := row.Scan(&u.ID, &u.Registration, &u.Name, &u.Email, &phone, &unit, &avatar,
		&u.Status, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if unit.Valid {
		u.Unit = &unit.String
	}
	if avatar.Valid {
		u.AvatarLink = &avatar.String
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns users ordered by name with simple offset pagination.
func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY name LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		var phone, unit, avatar sql.NullString
		if err := rows.Scan(&u.ID, &u.Registration, &u.Name, &u.Email, &phone, &unit, &avatar,
			&u.Status, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if phone.Valid {
			u.Phone = &phone.String
		}
		if unit.Valid {
			u.Unit = &unit.String
		}
		if avatar.Valid {
			u.AvatarLink = &avatar.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserPatch carries the optional fields of a partial user update. Nil
// pointers leave the stored value untouched.
type UserPatch struct {
	Name   *string
	Phone  *string
	Unit   *string
	Status *string
	Role   *string
}

// Update applies a partial update via COALESCE so that only supplied
// fields change. It returns sql.ErrNoRows when the user does not exist.
func (r *UserRepo) Update(ctx context.Context, id uint64, p UserPatch) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET
            name   = COALESCE(?, name),
            phone  = COALESCE(?, phone),
            unit   = COALESCE(?, unit),
            status = COALESCE(?, status),
            role   = COALESCE(?, role)
         WHERE id = ?`,
		p.Name, p.Phone, p.Unit, p.Status, p.Role, id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

// SetStatus activates or deactivates an account.
func (r *UserRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

// SetAvatar stores the relative path of the uploaded avatar, or clears it
// when link is nil.
func (r *UserRepo) SetAvatar(ctx context.Context, id uint64, link *string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET avatar_link=? WHERE id=?", link, id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

// Delete removes a user. Users referenced by usage controls cannot be
// deleted; the foreign key rejects the delete and ErrConflict is
// returned so the handler can answer 409 instead of corrupting history.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		if strings.Contains(err.Error(), "1451") { // row is referenced
			return ErrConflict
		}
		return err
	}
	return noRowsAsNotFound(res)
}

// noRowsAsNotFound maps a zero-row exec result onto sql.ErrNoRows.
func noRowsAsNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
