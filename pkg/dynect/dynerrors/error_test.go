package dynerrors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("chaining", func(t *testing.T) {
		base := New("base error")
		assert.Equal(t, "base error", base.Error())
		assert.Equal(t, "msg", base.New("msg").Error())
		assert.ErrorIs(t, base, base)

		derived := base.New("first level")
		assert.Equal(t, "first level", derived.Error())
		assert.ErrorIs(t, derived, base)

		goErr := errors.New("plain error")
		wrapped := derived.Err(goErr)
		assert.Equal(t, "first level", wrapped.Error())
		assert.ErrorIs(t, wrapped, base)
		assert.ErrorIs(t, wrapped, goErr)

		another := fmt.Errorf("another error")
		wrapped = derived.Msg("new message").Err(another)
		assert.Equal(t, "new message", wrapped.Error())
		assert.ErrorIs(t, wrapped, derived)
		assert.ErrorIs(t, wrapped, another)
	})

	t.Run("sentinel taxonomy", func(t *testing.T) {
		assert.ErrorIs(t, ErrAuth, ErrSession)
		assert.ErrorIs(t, ErrCreate, ErrSession)
		assert.ErrorIs(t, ErrQueryTimeout, ErrSession)
		assert.NotErrorIs(t, ErrAuth, ErrCreate)

		err := FromMessages(ErrGet, []Message{{Info: "zone not found"}})
		assert.ErrorIs(t, err, ErrGet)
		assert.ErrorIs(t, err, ErrSession)
		assert.NotErrorIs(t, err, ErrDelete)
	})
}

func TestJoinMessages(t *testing.T) {
	tests := []struct {
		name     string
		msgs     []Message
		expected string
	}{
		{
			name:     "single message",
			msgs:     []Message{{Info: "login: IP address does not match current session", Level: "ERROR"}},
			expected: "login: IP address does not match current session",
		},
		{
			name: "multiple messages joined",
			msgs: []Message{
				{Info: "Operation blocked by current task", ErrorCode: "OPERATION_FAILED"},
				{Info: "task_id: 12345"},
			},
			expected: "Operation blocked by current task. task_id: 12345",
		},
		{
			name:     "empty list",
			msgs:     nil,
			expected: "an unknown error occurred",
		},
		{
			name:     "messages without info",
			msgs:     []Message{{ErrorCode: "ILLEGAL_OPERATION"}},
			expected: "an unknown error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinMessages(tt.msgs))
		})
	}
}

func TestMessagesCarried(t *testing.T) {
	msgs := []Message{
		{Source: "API-B", Level: "ERROR", Info: "User: invalid login credentials", ErrorCode: "INVALID_DATA"},
	}
	err := FromMessages(ErrAuth, msgs)
	assert.Equal(t, "User: invalid login credentials", err.Error())
	assert.Equal(t, msgs, err.Messages())

	// Deriving keeps the list; fresh templates drop it.
	assert.Equal(t, msgs, err.Msg("wrapped").Messages())
	assert.Nil(t, err.New("fresh").Messages())
}
