package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/session"
	"github.com/npezzotti/go-praat/internal/stats"
	"github.com/npezzotti/go-praat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	errNoSession          = "No active user session found."
	errSessionCorrupted   = "Session corrupted or not properly initialized."
	errSessionUserMissing = "User not found in database for active session."
	errUserNotFound       = "User not found"
)

var genders = []string{"male", "female", "other"}

type contextKey string

const (
	sessionKey   contextKey = "session"
	requestIdKey contextKey = "request-id"
)

type sessionValue struct {
	id   string
	data session.Data
}

func WithSession(ctx context.Context, id string, data session.Data) context.Context {
	return context.WithValue(ctx, sessionKey, sessionValue{id: id, data: data})
}

// Session returns the session attached to ctx by the session middleware.
func Session(ctx context.Context) (string, session.Data, bool) {
	v, ok := ctx.Value(sessionKey).(sessionValue)
	return v.id, v.data, ok
}

func WithUserId(ctx context.Context, userId int) context.Context {
	return WithSession(ctx, "", session.Data{UserId: userId})
}

// UserId returns the authenticated user of ctx, if any.
func UserId(ctx context.Context) (int, bool) {
	_, data, ok := Session(ctx)
	if !ok || data.UserId == 0 {
		return 0, false
	}

	return data.UserId, true
}

func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

func RequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey).(string)
	return id
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
}

// UpdateProfileRequest carries a partial update; nil fields are left
// unchanged.
type UpdateProfileRequest struct {
	UserId         *int     `json:"userId"`
	Username       *string  `json:"username,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Bio            *string  `json:"bio,omitempty"`
	ProfilePicture *string  `json:"profilePicture,omitempty"`
	BannerImage    *string  `json:"bannerImage,omitempty"`
	FirstName      *string  `json:"firstName,omitempty"`
	LastName       *string  `json:"lastName,omitempty"`
	BirthDate      *string  `json:"birthDate,omitempty"`
	Gender         *string  `json:"gender,omitempty"`
	Balance        *float64 `json:"balance,omitempty"`
}

type UpdateProfileResponse struct {
	Success string     `json:"success"`
	User    types.User `json:"user"`
}

type SuccessResponse struct {
	Success string `json:"success"`
}

func (s *PraatApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	if req.Email == "" || req.Password == "" {
		s.writeError(w, r, NewBadRequestError("Email and password are required"))
		return
	}

	dbUser, err := s.db.GetVerifiedAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewUnauthorizedError("Invalid credentials (user not found or not verified)"))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	if !verifyPassword(dbUser.PasswordHash, req.Password) {
		s.writeError(w, r, NewUnauthorizedError("Invalid credentials (password mismatch)"))
		return
	}

	// any session named by the request cookie is replaced
	oldId, _ := s.sessions.SessionId(r)
	_, err = s.sessions.Rotate(r.Context(), w, oldId, session.Data{
		UserId:   dbUser.Id,
		Username: dbUser.Username,
	})
	if err != nil {
		s.writeError(w, r, NewInternalServerError(fmt.Errorf("rotate session: %w", err)))
		return
	}

	if err := s.db.TouchLastLogin(r.Context(), dbUser.Id); err != nil {
		s.log.Printf("[%s] update last login of user %d: %v", RequestId(r.Context()), dbUser.Id, err)
	}

	s.stats.Incr(stats.MetricLogins)
	s.writeJson(w, http.StatusOK, toUserProfile(dbUser))
}

func (s *PraatApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	required := []struct {
		name  string
		value string
	}{
		{"username", req.Username},
		{"email", req.Email},
		{"password", req.Password},
		{"firstName", req.FirstName},
		{"lastName", req.LastName},
		{"birthDate", req.BirthDate},
		{"gender", req.Gender},
	}
	for _, f := range required {
		if f.value == "" {
			s.writeError(w, r, NewBadRequestError("Missing required field: "+f.name))
			return
		}
	}

	if !slices.Contains(genders, req.Gender) {
		s.writeError(w, r, NewBadRequestError("Invalid value for field: gender"))
		return
	}

	birthDate, err := time.Parse(types.DateLayout, req.BirthDate)
	if err != nil {
		s.writeError(w, r, NewBadRequestError("Invalid value for field: birthDate"))
		return
	}

	exists, err := s.db.AccountExists(r.Context(), req.Email, req.Username)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}
	if exists {
		s.writeError(w, r, NewConflictError("User with this email or username already exists"))
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BirthDate:    birthDate,
		Gender:       req.Gender,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			s.writeError(w, r, NewConflictError("User with this email or username already exists"))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	if err := s.db.CreateUserSettings(r.Context(), newUser.Id); err != nil {
		s.log.Printf("[%s] create default settings for user %d: %v", RequestId(r.Context()), newUser.Id, err)
	}

	s.stats.Incr(stats.MetricRegistrations)
	s.writeJson(w, http.StatusOK, toUserProfile(newUser))
}

func (s *PraatApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	sid, data, ok := Session(r.Context())
	if !ok || data.UserId == 0 {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}

	var req UpdateProfileRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	if req.UserId == nil || *req.UserId == 0 {
		s.writeError(w, r, NewBadRequestError("User ID is required for profile update"))
		return
	}
	targetId := *req.UserId

	update, errResp := buildProfileUpdate(&req)
	if errResp != nil {
		s.writeError(w, r, errResp)
		return
	}
	if update.Empty() {
		s.writeError(w, r, NewBadRequestError("No fields provided for update"))
		return
	}

	if targetId != data.UserId || req.Balance != nil {
		caller, err := s.db.GetAccountById(r.Context(), data.UserId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.writeError(w, r, NewUnauthorizedError(errNoSession))
			} else {
				s.writeError(w, r, NewInternalServerError(err))
			}
			return
		}

		if !caller.IsAdmin {
			if req.Balance != nil {
				s.writeError(w, r, NewForbiddenError("Only administrators can change the balance"))
			} else {
				s.writeError(w, r, NewForbiddenError("You can only update your own profile"))
			}
			return
		}
	}

	if err := s.db.UpdateAccount(r.Context(), targetId, update); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicate):
			s.writeError(w, r, NewConflictError("User with this email or username already exists"))
		case errors.Is(err, sql.ErrNoRows):
			s.writeError(w, r, NewNotFoundError(errUserNotFound))
		case errors.Is(err, database.ErrNoFields):
			s.writeError(w, r, NewBadRequestError("No fields provided for update"))
		default:
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	updated, err := s.db.GetAccountById(r.Context(), targetId)
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Profile updated, but failed to retrieve updated user data.", err))
		return
	}

	if targetId == data.UserId {
		data.Username = updated.Username
		data.ProfilePicture = updated.ProfilePicture
		data.BannerImage = updated.BannerImage
		data.Bio = updated.Bio
		if err := s.sessions.Refresh(r.Context(), w, sid, data); err != nil {
			s.log.Printf("[%s] refresh session of user %d: %v", RequestId(r.Context()), data.UserId, err)
		}
	}

	s.writeJson(w, http.StatusOK, UpdateProfileResponse{
		Success: "Profile updated successfully",
		User:    toUserProfile(updated),
	})
}

// buildProfileUpdate validates the recognized fields of req and binds each
// one to its column.
func buildProfileUpdate(req *UpdateProfileRequest) (*database.ProfileUpdate, *ApiError) {
	update := database.NewProfileUpdate()

	if req.Username != nil {
		if strings.TrimSpace(*req.Username) == "" {
			return nil, NewBadRequestError("Invalid value for field: username")
		}
		update.Username(*req.Username)
	}
	if req.Email != nil {
		if strings.TrimSpace(*req.Email) == "" {
			return nil, NewBadRequestError("Invalid value for field: email")
		}
		update.Email(*req.Email)
	}
	if req.Bio != nil {
		update.Bio(*req.Bio)
	}
	if req.ProfilePicture != nil {
		update.ProfilePicture(*req.ProfilePicture)
	}
	if req.BannerImage != nil {
		update.BannerImage(*req.BannerImage)
	}
	if req.FirstName != nil {
		update.FirstName(*req.FirstName)
	}
	if req.LastName != nil {
		update.LastName(*req.LastName)
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse(types.DateLayout, *req.BirthDate)
		if err != nil {
			return nil, NewBadRequestError("Invalid value for field: birthDate")
		}
		update.BirthDate(birthDate)
	}
	if req.Gender != nil {
		if !slices.Contains(genders, *req.Gender) {
			return nil, NewBadRequestError("Invalid value for field: gender")
		}
		update.Gender(*req.Gender)
	}
	if req.Balance != nil {
		if *req.Balance < 0 {
			return nil, NewBadRequestError("Invalid value for field: balance")
		}
		update.Balance(*req.Balance)
	}

	return update, nil
}

func (s *PraatApp) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok, err := queryInt(r, "id")
	if err != nil {
		s.writeError(w, r, NewBadRequestError("Invalid user ID"))
		return
	}
	if !ok {
		s.writeError(w, r, NewBadRequestError("User ID is required"))
		return
	}

	user, err := s.db.GetAccountById(r.Context(), id)
	s.writeAccount(w, r, user, err)
}

func (s *PraatApp) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		s.writeError(w, r, NewBadRequestError("Username is required"))
		return
	}

	user, err := s.db.GetAccountByUsername(r.Context(), username)
	s.writeAccount(w, r, user, err)
}

func (s *PraatApp) writeAccount(w http.ResponseWriter, r *http.Request, user database.User, err error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewNotFoundError(errUserNotFound))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, toUserProfile(user))
}

func (s *PraatApp) verifySession(w http.ResponseWriter, r *http.Request) {
	sid, data, ok := Session(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}

	if data.UserId == 0 {
		s.destroySession(w, r, sid)
		s.writeError(w, r, NewUnauthorizedError(errSessionCorrupted))
		return
	}

	user, err := s.db.GetAccountById(r.Context(), data.UserId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.destroySession(w, r, sid)
			s.writeError(w, r, NewNotFoundError(errSessionUserMissing))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	data.UserId = user.Id
	data.Username = user.Username
	if err := s.sessions.Refresh(r.Context(), w, sid, data); err != nil {
		s.log.Printf("[%s] refresh session of user %d: %v", RequestId(r.Context()), user.Id, err)
	}

	s.writeJson(w, http.StatusOK, toUserProfile(user))
}

func (s *PraatApp) logout(w http.ResponseWriter, r *http.Request) {
	sid, _, ok := Session(r.Context())
	if !ok {
		// the store may have lost the session while the cookie is still valid
		sid, _ = s.sessions.SessionId(r)
	}

	s.destroySession(w, r, sid)
	s.writeJson(w, http.StatusOK, SuccessResponse{Success: "Logged out successfully"})
}

func (s *PraatApp) destroySession(w http.ResponseWriter, r *http.Request, sid string) {
	if err := s.sessions.Destroy(r.Context(), sid); err != nil {
		s.log.Printf("[%s] destroy session: %v", RequestId(r.Context()), err)
	}
	s.sessions.ClearCookie(w)
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
