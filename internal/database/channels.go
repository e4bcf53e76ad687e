package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const privateChatName = "Private Chat"

func scanChannel(row rowScanner) (Channel, error) {
	var c Channel
	err := row.Scan(
		&c.Id,
		&c.Name,
		&c.Type,
		&c.CreatedBy,
		&c.CreatorUsername,
		&c.IsActive,
		&c.CreatedAt,
	)

	return c, err
}

func (db *PgPraatRepository) queryChannels(ctx context.Context, query string, args ...any) ([]Channel, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := make([]Channel, 0)
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return channels, nil
}

func (db *PgPraatRepository) GetChannel(ctx context.Context, channelId int) (Channel, error) {
	return scanChannel(db.conn.QueryRowContext(ctx,
		"SELECT c.id, c.name, c.type, c.created_by, u.username, c.is_active, c.created_at "+
			"FROM channels c LEFT JOIN users u ON c.created_by = u.id WHERE c.id = $1",
		channelId,
	))
}

func (db *PgPraatRepository) ListPublicChannels(ctx context.Context) ([]Channel, error) {
	return db.queryChannels(ctx,
		"SELECT c.id, c.name, c.type, c.created_by, u.username, c.is_active, c.created_at "+
			"FROM channels c LEFT JOIN users u ON c.created_by = u.id "+
			"WHERE c.type = 'public' AND c.is_active ORDER BY c.name",
	)
}

// ListPrivateChats returns the private and group channels userId takes
// part in. A private channel is named after the other participant.
func (db *PgPraatRepository) ListPrivateChats(ctx context.Context, userId int) ([]Channel, error) {
	query := `
		SELECT c.id,
			CASE WHEN c.type = 'private' THEN COALESCE((
				SELECT ou.username
				FROM channel_participants op
				JOIN users ou ON ou.id = op.user_id
				WHERE op.channel_id = c.id AND op.user_id <> $1
				LIMIT 1
			), c.name) ELSE c.name END,
			c.type, c.created_by, NULL::text, c.is_active, c.created_at
		FROM channels c
		JOIN channel_participants cp ON cp.channel_id = c.id
		WHERE cp.user_id = $1 AND c.type IN ('private', 'group') AND c.is_active
		ORDER BY c.created_at DESC, c.id DESC`

	return db.queryChannels(ctx, query, userId)
}

func (db *PgPraatRepository) IsParticipant(ctx context.Context, channelId, userId int) (bool, error) {
	var ok bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM channel_participants WHERE channel_id = $1 AND user_id = $2)",
		channelId,
		userId,
	).Scan(&ok)

	return ok, err
}

const selectPrivateByPair = "SELECT id, name, type, created_by, NULL::text, is_active, created_at FROM channels " +
	"WHERE type = 'private' AND is_active AND pair_low = $1 AND pair_high = $2"

// CreatePrivateChat returns the active private channel between the two
// users, creating it with both participants if it does not exist yet. The
// pair is stored in canonical order so (a, b) and (b, a) resolve to the
// same row; a concurrent creator that loses the race on the unique pair
// index reads back the winner's channel.
func (db *PgPraatRepository) CreatePrivateChat(ctx context.Context, userId1, userId2 int) (Channel, error) {
	low, high := userId1, userId2
	if low > high {
		low, high = high, low
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Channel{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	channel, err := scanChannel(tx.QueryRowContext(ctx, selectPrivateByPair, low, high))
	if err == nil {
		err = tx.Commit()
		return channel, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Channel{}, fmt.Errorf("find private chat: %w", err)
	}

	channel, err = scanChannel(tx.QueryRowContext(ctx,
		"INSERT INTO channels (name, type, created_by, pair_low, pair_high, created_at) "+
			"VALUES ($1, 'private', $2, $3, $4, NOW()) "+
			"ON CONFLICT (pair_low, pair_high) WHERE type = 'private' AND is_active DO NOTHING "+
			"RETURNING id, name, type, created_by, NULL::text, is_active, created_at",
		privateChatName,
		userId1,
		low,
		high,
	))
	if errors.Is(err, sql.ErrNoRows) {
		channel, err = scanChannel(tx.QueryRowContext(ctx, selectPrivateByPair, low, high))
		if err != nil {
			return Channel{}, fmt.Errorf("read concurrent private chat: %w", err)
		}
		err = tx.Commit()
		return channel, err
	}
	if err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO channel_participants (channel_id, user_id, role) VALUES ($1, $2, 'member'), ($1, $3, 'member')",
		channel.Id,
		userId1,
		userId2,
	)
	if err != nil {
		return Channel{}, fmt.Errorf("insert participants: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Channel{}, err
	}

	return channel, nil
}
