package database

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicate is returned when a write hits a unique constraint.
	ErrDuplicate = errors.New("duplicate key")
	// ErrNoFields is returned by UpdateAccount for an empty update.
	ErrNoFields = errors.New("no fields to update")
)

type PraatRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	CreateUserSettings(ctx context.Context, userId int) error
	AccountExists(ctx context.Context, email, username string) (bool, error)
	UpdateAccount(ctx context.Context, userId int, update *ProfileUpdate) error
	GetAccountById(ctx context.Context, userId int) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	GetVerifiedAccountByEmail(ctx context.Context, email string) (User, error)
	TouchLastLogin(ctx context.Context, userId int) error

	GetChannel(ctx context.Context, channelId int) (Channel, error)
	ListPublicChannels(ctx context.Context) ([]Channel, error)
	ListPrivateChats(ctx context.Context, userId int) ([]Channel, error)
	IsParticipant(ctx context.Context, channelId, userId int) (bool, error)
	CreatePrivateChat(ctx context.Context, userId1, userId2 int) (Channel, error)

	GetMessages(ctx context.Context, channelId, limit int) ([]Message, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)

	ListOnlineUsers(ctx context.Context, since time.Time) ([]OnlineUser, error)
}
