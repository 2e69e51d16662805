package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/user"
)

const userColumns = `id, name, username, email, role, bio, is_active, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db executor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	var w where
	w.add("(username = ? OR email = ?)", username, email)
	if len(excludedIDs) > 0 {
		w.add("id NOT IN (?)", excludedIDs)
	}

	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := selectWhere(ctx, repo.db, &taken, "SELECT username, email FROM users", w, ""); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, t := range taken {
		if t.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :role, :bio, :is_active, :password_hash, :created_at, :updated_at, :last_login)`,
		usr,
	)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return user.User{}, user.ErrUsernameExists
		}
		if isUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args, err := build(repo.db, "SELECT "+userColumns+" FROM users"+w.String()+" LIMIT 1", w.args)
	if err != nil {
		return user.User{}, err
	}
	var usr user.User
	err = repo.db.GetContext(ctx, &usr, q, args...)
	return usr, trapNoRowsErr(err, user.ErrNotFound)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	filter.Clean()
	var w where
	if filter.Search != "" {
		p := likePattern(filter.Search)
		w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", p, p, p)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, string(r))
		}
		w.in("role", roles)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}

	users := make([]user.User, 0)
	ordering = core.AllowedOrderings(ordering, user.UserOrderings...)
	err := selectWhere(ctx, repo.db, &users, "SELECT "+userColumns+" FROM users", w, orderBy(ordering, "created_at DESC"))
	return users, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users SET
			name = :name, username = :username, email = :email, role = :role, bio = :bio,
			is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		usr,
	)
	if isUniqueViolation(err, "users_username_key") {
		return user.User{}, user.ErrUsernameExists
	}
	if isUniqueViolation(err, "users_email_key") {
		return user.User{}, user.ErrEmailExists
	}
	if err = mustAffect(res, err, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := build(repo.db, "DELETE FROM users WHERE id IN (?)", []interface{}{ids})
	if err != nil {
		return err
	}
	_, err = repo.db.ExecContext(ctx, q, args...)
	return err
}
