package database

import (
	"database/sql"
	"time"
)

const (
	ChannelTypePublic  = "public"
	ChannelTypePrivate = "private"
	ChannelTypeGroup   = "group"

	ContentTypeText = "text"

	// MaxContentTypeLen is the width of messages.content_type.
	MaxContentTypeLen = 20
)

// User is a users row joined with the name of the user's current
// subscription plan, if any.
type User struct {
	Id             int
	Username       string
	EmailAddress   string
	PasswordHash   string
	FirstName      string
	LastName       string
	BirthDate      time.Time
	Gender         string
	ProfilePicture string
	BannerImage    string
	Bio            string
	Balance        float64
	EmailVerified  bool
	IsVerified     bool
	IsCreator      bool
	IsAdmin        bool
	PlanName       sql.NullString
	LastLogin      sql.NullTime
	CreatedAt      time.Time
}

type Channel struct {
	Id              int
	Name            string
	Type            string
	CreatedBy       sql.NullInt64
	CreatorUsername sql.NullString
	IsActive        bool
	CreatedAt       time.Time
}

type Message struct {
	Id          int
	ChannelId   int
	UserId      int
	Content     string
	ContentType string
	IsDeleted   bool
	CreatedAt   time.Time
	Author      Author
}

// Author is the subset of the users row hydrated into each message.
type Author struct {
	Id             int
	Username       string
	ProfilePicture string
	IsCreator      bool
	IsAdmin        bool
	PlanName       sql.NullString
}

// OnlineUser is a roster entry for a recently active user.
type OnlineUser struct {
	Id             int
	Username       string
	ProfilePicture string
	Gender         string
	BirthDate      time.Time
	IsCreator      bool
	IsAdmin        bool
	PlanName       sql.NullString
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	FirstName    string
	LastName     string
	BirthDate    time.Time
	Gender       string
}

type CreateMessageParams struct {
	ChannelId   int
	UserId      int
	Content     string
	ContentType string
}
