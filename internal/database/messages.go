package database

import (
	"context"
	"fmt"
	"time"
)

const selectMessage = `
	SELECT m.id, m.channel_id, m.user_id, m.content, m.content_type, m.is_deleted, m.created_at,
		u.username, u.profile_picture, u.is_creator, u.is_admin, plan.name AS plan_name
	FROM messages m
	JOIN users u ON u.id = m.user_id` + currentPlanJoin

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.ChannelId,
		&m.UserId,
		&m.Content,
		&m.ContentType,
		&m.IsDeleted,
		&m.CreatedAt,
		&m.Author.Username,
		&m.Author.ProfilePicture,
		&m.Author.IsCreator,
		&m.Author.IsAdmin,
		&m.Author.PlanName,
	)
	m.Author.Id = m.UserId

	return m, err
}

// GetMessages returns the latest limit visible messages of a channel,
// oldest first.
func (db *PgPraatRepository) GetMessages(ctx context.Context, channelId, limit int) ([]Message, error) {
	query := `
		SELECT id, channel_id, user_id, content, content_type, is_deleted, created_at,
			username, profile_picture, is_creator, is_admin, plan_name
		FROM (` + selectMessage + `
			WHERE m.channel_id = $1 AND NOT m.is_deleted
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, channelId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

// CreateMessage inserts a message and reads it back joined with its
// author in the same transaction.
func (db *PgPraatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	contentType := params.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id int
	err = tx.QueryRowContext(ctx,
		"INSERT INTO messages (channel_id, user_id, content, content_type, created_at) "+
			"VALUES ($1, $2, $3, $4, NOW()) RETURNING id",
		params.ChannelId,
		params.UserId,
		params.Content,
		contentType,
	).Scan(&id)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	msg, err := scanMessage(tx.QueryRowContext(ctx, selectMessage+" WHERE m.id = $1", id))
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// ListOnlineUsers returns users who logged in after since. Ordering is
// left to the caller.
func (db *PgPraatRepository) ListOnlineUsers(ctx context.Context, since time.Time) ([]OnlineUser, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT u.id, u.username, u.profile_picture, u.gender, u.birth_date,
			u.is_creator, u.is_admin, plan.name
		FROM users u`+currentPlanJoin+`
		WHERE u.last_login > $1
		ORDER BY u.username`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]OnlineUser, 0)
	for rows.Next() {
		var u OnlineUser
		if err := rows.Scan(
			&u.Id,
			&u.Username,
			&u.ProfilePicture,
			&u.Gender,
			&u.BirthDate,
			&u.IsCreator,
			&u.IsAdmin,
			&u.PlanName,
		); err != nil {
			return nil, fmt.Errorf("scan online user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}
