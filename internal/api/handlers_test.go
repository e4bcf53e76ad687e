package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-praat/internal/config"
	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/server"
	"github.com/npezzotti/go-praat/internal/session"
	"github.com/npezzotti/go-praat/internal/stats"
	"github.com/npezzotti/go-praat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	*PraatApp
	store    *session.MemoryStore
	sessions *session.Manager
	stats    *stats.MockStatsUpdater
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:      "localhost:8000",
		SigningKey:      []byte("test-signing-key"),
		AllowedOrigins:  []string{"http://localhost:3000"},
		SessionTTL:      time.Hour,
		OnlineWindow:    15 * time.Minute,
		MaxMessageLimit: 200,
		LoginRate:       100,
		LoginBurst:      100,
	}
}

func newTestApp(t *testing.T, db database.PraatRepository, cs *server.ChatServer) *testApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()

	store := session.NewMemoryStore(time.Hour)
	sessions := session.NewManager(store, []byte("test-signing-key"), session.Options{TTL: time.Hour})
	app := NewPraatApp(mux.NewRouter(), testutil.TestLogger(t), cs, db, sessions, su, testConfig())

	return &testApp{PraatApp: app, store: store, sessions: sessions, stats: su}
}

// newSession stores data under a fresh session and returns the cookie
// naming it.
func (a *testApp) newSession(t *testing.T, data session.Data) (string, *http.Cookie) {
	t.Helper()

	id, err := a.sessions.Create(context.Background(), data)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, a.sessions.SetCookie(rr, id))

	cookie := findCookie(rr, session.DefaultCookieName)
	require.NotNil(t, cookie)
	return id, cookie
}

// do sends a request through the full middleware chain.
func (a *testApp) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
// findCookie returns the last cookie set under name, the one a browser
// would keep.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			found = cookie
		}
	}
	return found
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "expected a JSON body, got %q", rr.Body.String())
	assert.Len(t, body, 1, "expected the error contract to carry only the error field")

	msg, _ := body["error"].(string)
	return msg
}

func intPtr(n int) *int           { return &n }
func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestNewPraatApp(t *testing.T) {
	db := &database.MockPraatRepository{}
	app := newTestApp(t, db, nil)

	assert.NotNil(t, app.srv, "expected http server to be initialized")
	assert.Equal(t, "localhost:8000", app.srv.Addr, "expected server address to match config")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, 15*time.Minute, app.onlineWindow)
	assert.Equal(t, 200, app.maxMessageLimit)
	app.stats.AssertCalled(t, "RegisterMetric", stats.MetricLogins)
	app.stats.AssertCalled(t, "RegisterMetric", stats.MetricMessagesSent)
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockPraatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo, nil)
			rr := app.do(http.MethodGet, "/healthz", nil)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
				assert.Equal(t, "Internal server error", errorBody(t, rr), "expected the cause not to leak")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func Test_dispatch(t *testing.T) {
	app := newTestApp(t, &database.MockPraatRepository{}, nil)

	tcases := []struct {
		name     string
		method   string
		target   string
		status   int
		errorMsg string
	}{
		{
			name:     "unknown auth POST action",
			method:   http.MethodPost,
			target:   "/api/auth?action=dance",
			status:   http.StatusBadRequest,
			errorMsg: "Invalid POST action: dance",
		},
		{
			name:     "unknown auth GET action",
			method:   http.MethodGet,
			target:   "/api/auth?action=login",
			status:   http.StatusBadRequest,
			errorMsg: "Invalid GET action: login",
		},
		{
			name:     "missing chat action",
			method:   http.MethodGet,
			target:   "/api/chat",
			status:   http.StatusBadRequest,
			errorMsg: "Invalid GET action: ",
		},
		{
			name:     "unsupported method",
			method:   http.MethodPut,
			target:   "/api/auth?action=login",
			status:   http.StatusMethodNotAllowed,
			errorMsg: "Method not allowed: PUT",
		},
		{
			name:     "unsupported chat method",
			method:   http.MethodDelete,
			target:   "/api/chat?action=sendMessage",
			status:   http.StatusMethodNotAllowed,
			errorMsg: "Method not allowed: DELETE",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := app.do(tc.method, tc.target, nil)
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.errorMsg, errorBody(t, rr))
			assert.NotEmpty(t, rr.Header().Get(requestIdHeader), "expected a request id header")
		})
	}
}

func Test_decodeJson(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
		var v LoginRequest
		errResp := decodeJson(req, &v)
		require.NotNil(t, errResp)
		assert.Equal(t, http.StatusBadRequest, errResp.StatusCode)
		assert.True(t, strings.HasPrefix(errResp.Message, "Invalid JSON data provided"))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		var v LoginRequest
		assert.Nil(t, decodeJson(req, &v))
		assert.Empty(t, v.Email)
	})
}

func Test_serveWs(t *testing.T) {
	mockUser := database.User{Id: 1, Username: "testuser", EmailAddress: "testuser@example.com"}

	t.Run("successful websocket upgrade and client registration", func(t *testing.T) {
		mockRepo := &database.MockPraatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", mockUser.Id).Return(mockUser, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("RegisterMetric", mock.Anything).Return()
		su.On("Incr", stats.MetricActiveSockets).Return().Once()
		su.On("Decr", stats.MetricActiveSockets).Return().Maybe()

		cs, err := server.NewChatServer(testutil.TestLogger(t), mockRepo, su)
		require.NoError(t, err)
		go cs.Run()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			cs.Shutdown(ctx)
		}()

		app := newTestApp(t, mockRepo, cs)
		_, cookie := app.newSession(t, session.Data{UserId: mockUser.Id, Username: mockUser.Username})

		srv := httptest.NewServer(app.srv.Handler)
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		header := http.Header{}
		header.Add("Cookie", cookie.String())

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		defer func() {
			if conn != nil {
				conn.Close()
			}
		}()
		require.NoError(t, err)
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	})

	t.Run("rejects disallowed origin", func(t *testing.T) {
		mockRepo := &database.MockPraatRepository{}
		mockRepo.On("GetAccountById", mockUser.Id).Return(mockUser, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		_, cookie := app.newSession(t, session.Data{UserId: mockUser.Id})

		srv := httptest.NewServer(app.srv.Handler)
		defer srv.Close()

		header := http.Header{}
		header.Add("Cookie", cookie.String())
		header.Add("Origin", "http://evil.test")

		_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
		assert.Error(t, err)
		if assert.NotNil(t, resp) {
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
	})

	errorTestCases := []struct {
		name           string
		withSession    bool
		mockErr        error
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "unauthorized user",
			withSession:    false,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    errNoSession,
		},
		{
			name:           "user not found",
			withSession:    true,
			mockErr:        sql.ErrNoRows,
			expectedStatus: http.StatusNotFound,
			expectedMsg:    errSessionUserMissing,
		},
		{
			name:           "db error",
			withSession:    true,
			mockErr:        errors.New("db error"),
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Internal server error",
		},
	}

	for _, tc := range errorTestCases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockPraatRepository{}
			defer mockRepo.AssertExpectations(t)

			app := newTestApp(t, mockRepo, nil)

			var cookies []*http.Cookie
			if tc.withSession {
				mockRepo.On("GetAccountById", 1).Return(database.User{}, tc.mockErr).Once()
				_, cookie := app.newSession(t, session.Data{UserId: 1})
				cookies = append(cookies, cookie)
			}

			rr := app.do(http.MethodGet, "/ws", nil, cookies...)
			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedMsg, errorBody(t, rr))
		})
	}
}
