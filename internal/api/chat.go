package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/stats"
	"github.com/npezzotti/go-praat/internal/types"
)

const defaultMessageLimit = 50

type SendMessageRequest struct {
	ChannelId   *int    `json:"channelId"`
	UserId      *int    `json:"userId"`
	Content     *string `json:"content"`
	ContentType string  `json:"contentType,omitempty"`
}

type CreatePrivateChatRequest struct {
	UserId1 *int `json:"userId1"`
	UserId2 *int `json:"userId2"`
}

func (s *PraatApp) getPublicChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.db.ListPublicChannels(r.Context())
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to get public channels", err))
		return
	}

	s.writeJson(w, http.StatusOK, toChannels(channels))
}

func (s *PraatApp) getPrivateChats(w http.ResponseWriter, r *http.Request) {
	userId, ok, err := queryInt(r, "userId")
	if err != nil {
		s.writeError(w, r, NewBadRequestError("Invalid user ID"))
		return
	}
	if !ok {
		s.writeError(w, r, NewBadRequestError("User ID is required"))
		return
	}

	sessionUser, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}
	if sessionUser != userId {
		s.writeError(w, r, NewForbiddenError("You can only list your own chats"))
		return
	}

	channels, err := s.db.ListPrivateChats(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to get private chats", err))
		return
	}

	s.writeJson(w, http.StatusOK, toChannels(channels))
}

func (s *PraatApp) getChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelId, ok, err := queryInt(r, "channelId")
	if err != nil {
		s.writeError(w, r, NewBadRequestError("Invalid channel ID"))
		return
	}
	if !ok {
		s.writeError(w, r, NewBadRequestError("Channel ID is required"))
		return
	}

	limit, ok, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, NewBadRequestError("Invalid limit"))
		return
	}
	if !ok {
		limit = defaultMessageLimit
	}
	limit = max(1, min(limit, s.maxMessageLimit))

	if errResp := s.authorizeChannel(r, channelId); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	dbMessages, err := s.db.GetMessages(r.Context(), channelId, limit)
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to get channel messages", err))
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, toMessage(m))
	}

	s.writeJson(w, http.StatusOK, messages)
}

// authorizeChannel checks that the channel exists and is active, and that
// the session user participates in it unless it is public.
func (s *PraatApp) authorizeChannel(r *http.Request, channelId int) *ApiError {
	channel, err := s.db.GetChannel(r.Context(), channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("Channel not found")
		}
		return NewInternalServerError(fmt.Errorf("get channel %d: %w", channelId, err))
	}

	if !channel.IsActive {
		return NewNotFoundError("Channel not found")
	}

	if channel.Type == database.ChannelTypePublic {
		return nil
	}

	userId, ok := UserId(r.Context())
	if !ok {
		return NewUnauthorizedError(errNoSession)
	}

	member, err := s.db.IsParticipant(r.Context(), channelId, userId)
	if err != nil {
		return NewInternalServerError(fmt.Errorf("check participant of channel %d: %w", channelId, err))
	}
	if !member {
		return NewForbiddenError("Not a participant of this channel")
	}

	return nil
}

func (s *PraatApp) getOnlineUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListOnlineUsers(r.Context(), s.now().Add(-s.onlineWindow))
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to get online users", err))
		return
	}

	users := make([]types.OnlineUser, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, toOnlineUser(u))
	}
	types.SortRoster(users)

	s.writeJson(w, http.StatusOK, users)
}

func (s *PraatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionUser, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}

	var req SendMessageRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	if req.ChannelId == nil || req.UserId == nil || req.Content == nil || strings.TrimSpace(*req.Content) == "" {
		s.writeError(w, r, NewBadRequestError("Missing required fields"))
		return
	}

	if *req.UserId != sessionUser {
		s.writeError(w, r, NewForbiddenError("Cannot send messages as another user"))
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = database.ContentTypeText
	}
	if !validContentType(contentType) {
		s.writeError(w, r, NewBadRequestError("Invalid value for field: contentType"))
		return
	}

	if errResp := s.authorizeChannel(r, *req.ChannelId); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	dbMessage, err := s.db.CreateMessage(r.Context(), database.CreateMessageParams{
		ChannelId:   *req.ChannelId,
		UserId:      sessionUser,
		Content:     *req.Content,
		ContentType: contentType,
	})
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to send message", err))
		return
	}

	msg := toMessage(dbMessage)
	s.stats.Incr(stats.MetricMessagesSent)
	if s.cs != nil {
		s.cs.Publish(msg)
	}

	s.writeJson(w, http.StatusOK, msg)
}

// validContentType accepts short MIME-like tokens such as "text" or
// "image/png".
func validContentType(ct string) bool {
	if len(ct) > database.MaxContentTypeLen {
		return false
	}
	for _, c := range ct {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '/', c == '-', c == '+', c == '.', c == '_':
		default:
			return false
		}
	}
	return true
}

func (s *PraatApp) createPrivateChat(w http.ResponseWriter, r *http.Request) {
	sessionUser, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}

	var req CreatePrivateChatRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, r, errResp)
		return
	}

	if req.UserId1 == nil || req.UserId2 == nil || *req.UserId1 == 0 || *req.UserId2 == 0 {
		s.writeError(w, r, NewBadRequestError("Missing required fields"))
		return
	}

	userId1, userId2 := *req.UserId1, *req.UserId2
	if userId1 == userId2 {
		s.writeError(w, r, NewBadRequestError("Cannot create a private chat with yourself"))
		return
	}

	if sessionUser != userId1 && sessionUser != userId2 {
		s.writeError(w, r, NewForbiddenError("You can only create private chats you take part in"))
		return
	}

	channel, err := s.db.CreatePrivateChat(r.Context(), userId1, userId2)
	if err != nil {
		s.writeError(w, r, NewInternalServerErrorMessage("Failed to create private chat", err))
		return
	}

	s.writeJson(w, http.StatusOK, toChannel(channel))
}
