package database

import (
	"context"
	"database/sql"
	"fmt"
)

// currentPlanJoin resolves the plan of the most recently created active,
// non-expired subscription of the user aliased u.
const currentPlanJoin = `
	LEFT JOIN LATERAL (
		SELECT sp.name
		FROM user_subscriptions us
		JOIN subscription_plans sp ON sp.id = us.plan_id
		WHERE us.user_id = u.id AND us.is_active AND us.end_date > NOW()
		ORDER BY us.created_at DESC, us.id DESC
		LIMIT 1
	) plan ON TRUE`

const selectAccount = `
	SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name,
		u.birth_date, u.gender, u.profile_picture, u.banner_image, u.bio, u.balance,
		u.email_verified, u.is_verified, u.is_creator, u.is_admin,
		plan.name, u.last_login, u.created_at
	FROM users u` + currentPlanJoin

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.BirthDate,
		&u.Gender,
		&u.ProfilePicture,
		&u.BannerImage,
		&u.Bio,
		&u.Balance,
		&u.EmailVerified,
		&u.IsVerified,
		&u.IsCreator,
		&u.IsAdmin,
		&u.PlanName,
		&u.LastLogin,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgPraatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	var id int
	err := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password_hash, first_name, last_name, birth_date, gender, email_verified, is_verified, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, TRUE, NOW()) RETURNING id",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		params.BirthDate,
		params.Gender,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return db.GetAccountById(ctx, id)
}

func (db *PgPraatRepository) CreateUserSettings(ctx context.Context, userId int) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO user_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING",
		userId,
	)

	return err
}

func (db *PgPraatRepository) AccountExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)",
		email,
		username,
	).Scan(&exists)

	return exists, err
}

func (db *PgPraatRepository) UpdateAccount(ctx context.Context, userId int, update *ProfileUpdate) error {
	if update.Empty() {
		return ErrNoFields
	}

	query, args := update.Statement(userId)
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgPraatRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	return scanAccount(db.conn.QueryRowContext(ctx, selectAccount+" WHERE u.id = $1", userId))
}

func (db *PgPraatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	return scanAccount(db.conn.QueryRowContext(ctx, selectAccount+" WHERE u.username = $1", username))
}

func (db *PgPraatRepository) GetVerifiedAccountByEmail(ctx context.Context, email string) (User, error) {
	return scanAccount(db.conn.QueryRowContext(ctx,
		selectAccount+" WHERE u.email = $1 AND u.email_verified",
		email,
	))
}

func (db *PgPraatRepository) TouchLastLogin(ctx context.Context, userId int) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE users SET last_login = NOW() WHERE id = $1", userId)
	return err
}
