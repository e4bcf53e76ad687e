package database

import (
	"fmt"
	"strings"
	"time"
)

// ProfileUpdate collects a partial update of a users row. Each setter is
// bound to one column and its declared type, so the generated statement
// only ever contains known column names and positional parameters.
type ProfileUpdate struct {
	cols []string
	args []any
}

func NewProfileUpdate() *ProfileUpdate {
	return &ProfileUpdate{}
}

func (u *ProfileUpdate) set(col string, v any) *ProfileUpdate {
	for i, c := range u.cols {
		if c == col {
			u.args[i] = v
			return u
		}
	}

	u.cols = append(u.cols, col)
	u.args = append(u.args, v)
	return u
}

func (u *ProfileUpdate) Username(v string) *ProfileUpdate       { return u.set("username", v) }
func (u *ProfileUpdate) Email(v string) *ProfileUpdate          { return u.set("email", v) }
func (u *ProfileUpdate) Bio(v string) *ProfileUpdate            { return u.set("bio", v) }
func (u *ProfileUpdate) ProfilePicture(v string) *ProfileUpdate { return u.set("profile_picture", v) }
func (u *ProfileUpdate) BannerImage(v string) *ProfileUpdate    { return u.set("banner_image", v) }
func (u *ProfileUpdate) FirstName(v string) *ProfileUpdate      { return u.set("first_name", v) }
func (u *ProfileUpdate) LastName(v string) *ProfileUpdate       { return u.set("last_name", v) }
func (u *ProfileUpdate) BirthDate(v time.Time) *ProfileUpdate   { return u.set("birth_date", v) }
func (u *ProfileUpdate) Gender(v string) *ProfileUpdate         { return u.set("gender", v) }
func (u *ProfileUpdate) Balance(v float64) *ProfileUpdate       { return u.set("balance", v) }

// Empty reports whether no column has been set.
func (u *ProfileUpdate) Empty() bool {
	return u == nil || len(u.cols) == 0
}

// Columns returns the columns set so far, in call order.
func (u *ProfileUpdate) Columns() []string {
	return append([]string(nil), u.cols...)
}

// Statement renders the UPDATE for userId. The user id is always the last
// parameter.
func (u *ProfileUpdate) Statement(userId int) (string, []any) {
	assignments := make([]string, len(u.cols))
	for i, col := range u.cols {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}

	args := append(append([]any(nil), u.args...), userId)
	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d",
		strings.Join(assignments, ", "),
		len(args),
	)

	return query, args
}
