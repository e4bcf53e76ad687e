// Package session keeps server-side authentication state keyed by an
// opaque session id. The browser only ever holds a signed reference to
// the id; everything else lives in a Store.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when the id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Data is the state kept for an authenticated session.
type Data struct {
	UserId         int       `json:"user_id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	BannerImage    string    `json:"banner_image,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is a keyed session backend.
type Store interface {
	Get(ctx context.Context, id string) (Data, error)
	Put(ctx context.Context, id string, data Data) error
	Delete(ctx context.Context, id string) error
}
