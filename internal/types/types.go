package types

import (
	"strings"
	"time"
)

const (
	RoleUser    = "user"
	RolePremium = "premium"
	RoleVIP     = "vip"
	RoleRoyal   = "royal"
)

// DateLayout is the wire format of birth dates.
const DateLayout = "2006-01-02"

// User is the profile object returned by the auth endpoints. It never
// carries the password hash.
type User struct {
	Id             int        `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	BirthDate      string     `json:"birthDate"`
	Gender         string     `json:"gender"`
	ProfilePicture string     `json:"profilePicture"`
	BannerImage    string     `json:"bannerImage"`
	Bio            string     `json:"bio"`
	Balance        float64    `json:"balance"`
	Role           string     `json:"role"`
	IsCreator      bool       `json:"isCreator"`
	IsAdmin        bool       `json:"isAdmin"`
	IsVerified     bool       `json:"isVerified"`
	LastLogin      *time.Time `json:"lastLogin"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type Channel struct {
	Id              int       `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	CreatedBy       *int      `json:"createdBy"`
	CreatorUsername string    `json:"creatorUsername,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Author is the trimmed user attached to each message.
type Author struct {
	Id             int    `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	Role           string `json:"role"`
	IsCreator      bool   `json:"isCreator"`
	IsAdmin        bool   `json:"isAdmin"`
}

type Message struct {
	Id          int       `json:"id"`
	ChatId      int       `json:"chatId"`
	UserId      int       `json:"userId"`
	Text        string    `json:"text"`
	ContentType string    `json:"contentType"`
	IsDeleted   bool      `json:"isDeleted"`
	CreatedAt   time.Time `json:"createdAt"`
	User        Author    `json:"user"`
}

// OnlineUser is an entry of the online roster.
type OnlineUser struct {
	Id             int    `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	Gender         string `json:"gender"`
	BirthDate      string `json:"birthDate"`
	Role           string `json:"role"`
	IsCreator      bool   `json:"isCreator"`
	IsAdmin        bool   `json:"isAdmin"`
}

// RoleFromPlan derives the role label from a subscription plan name.
func RoleFromPlan(planName string) string {
	if planName == "" {
		return RoleUser
	}
	return strings.ToLower(planName)
}
