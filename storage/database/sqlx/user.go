package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

type userRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Roles     string    `db:"roles"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const userColumns = "id, name, email, roles, is_active, created_at, updated_at"

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO users (name, email, roles, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		usr.Name, usr.Email, strings.Join(usr.Roles, ","), usr.IsActive, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	var row userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return unboilUser(row), nil
}

func (repo *userRepository) QueryUsersByID(ctx context.Context, ids ...int64) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users WHERE id IN (?) ORDER BY id", ids); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = unboilUser(row)
	}
	return users, nil
}

func unboilUser(row userRow) user.User {
	var roles []string
	if row.Roles != "" {
		roles = strings.Split(row.Roles, ",")
	}
	return user.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		IsActive:  row.IsActive,
		Roles:     roles,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}
