// Package client talks to the praat HTTP API the way the browser does: one
// cookie jar per Client, JSON in and out, and the same action routing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/npezzotti/go-praat/internal/types"
	"golang.org/x/net/publicsuffix"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the error contract.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient returns a Client for the server at baseURL. When httpClient is
// nil a client with its own cookie jar is created.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}

	return &Client{baseURL: u, http: httpClient}, nil
}

func (c *Client) endpoint(path, action string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("action", action)

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path, action string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, action, query), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}

	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterParams are the fields required to create an account.
type RegisterParams struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
}

// ProfileChanges is a partial profile update. Nil fields are not sent.
type ProfileChanges struct {
	UserId         int      `json:"userId"`
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

func (c *Client) Login(ctx context.Context, email, password string) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodPost, "/api/auth", "login", nil, loginRequest{Email: email, Password: password}, &user)
	return user, err
}

func (c *Client) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodPost, "/api/auth", "register", nil, params, &user)
	return user, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth", "logout", nil, nil, nil)
}

func (c *Client) VerifySession(ctx context.Context) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodGet, "/api/auth", "verifySession", nil, nil, &user)
	return user, err
}

func (c *Client) UpdateProfile(ctx context.Context, changes ProfileChanges) (types.User, error) {
	var resp struct {
		Success string     `json:"success"`
		User    types.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth", "updateProfile", nil, changes, &resp)
	return resp.User, err
}

func (c *Client) GetUser(ctx context.Context, id int) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodGet, "/api/auth", "getUser", url.Values{"id": {strconv.Itoa(id)}}, nil, &user)
	return user, err
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodGet, "/api/auth", "getUserByUsername", url.Values{"username": {username}}, nil, &user)
	return user, err
}

func (c *Client) PublicChannels(ctx context.Context) ([]types.Channel, error) {
	var channels []types.Channel
	err := c.do(ctx, http.MethodGet, "/api/chat", "getPublicChannels", nil, nil, &channels)
	return channels, err
}

func (c *Client) PrivateChats(ctx context.Context, userId int) ([]types.Channel, error) {
	var channels []types.Channel
	err := c.do(ctx, http.MethodGet, "/api/chat", "getPrivateChats", url.Values{"userId": {strconv.Itoa(userId)}}, nil, &channels)
	return channels, err
}

// ChannelMessages returns the latest messages of a channel, oldest first. A
// limit <= 0 leaves the server default.
func (c *Client) ChannelMessages(ctx context.Context, channelId, limit int) ([]types.Message, error) {
	query := url.Values{"channelId": {strconv.Itoa(channelId)}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var messages []types.Message
	err := c.do(ctx, http.MethodGet, "/api/chat", "getChannelMessages", query, nil, &messages)
	return messages, err
}

func (c *Client) OnlineUsers(ctx context.Context) ([]types.OnlineUser, error) {
	var users []types.OnlineUser
	err := c.do(ctx, http.MethodGet, "/api/chat", "getOnlineUsers", nil, nil, &users)
	return users, err
}

type sendMessageRequest struct {
	ChannelId   int    `json:"channelId"`
	UserId      int    `json:"userId"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, channelId, userId int, text string) (types.Message, error) {
	var msg types.Message
	err := c.do(ctx, http.MethodPost, "/api/chat", "sendMessage", nil, sendMessageRequest{
		ChannelId: channelId,
		UserId:    userId,
		Content:   text,
	}, &msg)
	return msg, err
}

func (c *Client) CreatePrivateChat(ctx context.Context, userId1, userId2 int) (types.Channel, error) {
	var channel types.Channel
	err := c.do(ctx, http.MethodPost, "/api/chat", "createPrivateChat", nil, map[string]int{
		"userId1": userId1,
		"userId2": userId2,
	}, &channel)
	return channel, err
}
