package server

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-praat/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestResponseFrames(t *testing.T) {
	tcases := []struct {
		name     string
		msg      *ServerMessage
		id       int
		code     int
		errorMsg string
	}{
		{
			name: "ok",
			msg:  NoErrOK(1, nil),
			id:   1,
			code: http.StatusOK,
		},
		{
			name:     "channel not found",
			msg:      ErrChannelNotFound(2),
			id:       2,
			code:     http.StatusNotFound,
			errorMsg: "channel not found",
		},
		{
			name:     "forbidden",
			msg:      ErrForbidden(3),
			id:       3,
			code:     http.StatusForbidden,
			errorMsg: "not a participant of this channel",
		},
		{
			name:     "internal error",
			msg:      ErrInternalError(4),
			id:       4,
			code:     http.StatusInternalServerError,
			errorMsg: "internal server error",
		},
		{
			name:     "service unavailable",
			msg:      ErrServiceUnavailable(5),
			id:       5,
			code:     http.StatusServiceUnavailable,
			errorMsg: "service unavailable",
		},
		{
			name:     "invalid message without id",
			msg:      ErrInvalidMessage(-1),
			id:       0,
			code:     http.StatusBadRequest,
			errorMsg: "invalid message format",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.id, tc.msg.Id)
			assert.False(t, tc.msg.Timestamp.IsZero(), "expected timestamp to be set")
			assert.Nil(t, tc.msg.Message)
			if assert.NotNil(t, tc.msg.Response) {
				assert.Equal(t, tc.code, tc.msg.Response.ResponseCode)
				assert.Equal(t, tc.errorMsg, tc.msg.Response.Error)
			}
		})
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(types.Message{Id: 7, ChatId: 3, Text: "hoi"})

	assert.Nil(t, msg.Response)
	if assert.NotNil(t, msg.Message) {
		assert.Equal(t, 7, msg.Message.Id)
		assert.Equal(t, 3, msg.Message.ChatId)
		assert.Equal(t, "hoi", msg.Message.Text)
	}
}
