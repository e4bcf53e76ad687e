package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-praat/internal/server"
)

const maxBodySize = 1 << 20

func (s *PraatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeError logs server-side failures with the request id and writes the
// error contract.
func (s *PraatApp) writeError(w http.ResponseWriter, r *http.Request, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError || errResp.Err != nil {
		s.log.Printf("[%s] %s %s?action=%s: %v",
			RequestId(r.Context()), r.Method, r.URL.Path, r.URL.Query().Get("action"), errResp)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

// decodeJson decodes the request body into v. An empty body leaves v
// untouched so that missing fields are reported by the handler.
func decodeJson(r *http.Request, v any) *ApiError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return NewBadRequestError("Failed to read request body")
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		return NewBadRequestError("Invalid JSON data provided: " + err.Error())
	}

	return nil
}

// queryInt parses the named query parameter. It returns ok=false with a
// nil error when the parameter is absent.
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q", name, raw)
	}

	return n, true, nil
}

// actionTable maps the action query parameter to a handler, per method.
type actionTable struct {
	post map[string]http.HandlerFunc
	get  map[string]http.HandlerFunc
}

func (s *PraatApp) dispatch(t actionTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var handlers map[string]http.HandlerFunc
		switch r.Method {
		case http.MethodPost:
			handlers = t.post
		case http.MethodGet:
			handlers = t.get
		default:
			s.writeError(w, r, NewMethodNotAllowedError(r.Method))
			return
		}

		action := r.URL.Query().Get("action")
		handler, ok := handlers[action]
		if !ok {
			s.writeError(w, r, NewBadRequestError(fmt.Sprintf("Invalid %s action: %s", r.Method, action)))
			return
		}

		handler(w, r)
	}
}

func (s *PraatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, r, NewInternalServerError(fmt.Errorf("ping database: %w", err)))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *PraatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(errNoSession))
		return
	}

	user, err := s.db.GetAccountById(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewNotFoundError(errSessionUserMissing))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(toUserProfile(user), conn, s.cs, s.log)
	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
