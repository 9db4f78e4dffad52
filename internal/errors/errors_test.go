package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeBadStanza, "frame without payload")
		assert.Equal(t, "MALFORMED_STANZA: frame without payload", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("websocket: close 1006")
		err := Wrap(ErrCodeTransportLost, "session connection lost", cause)
		assert.Contains(t, err.Error(), "TRANSPORT_LOST")
		assert.Contains(t, err.Error(), "session connection lost")
		assert.Contains(t, err.Error(), "websocket: close 1006")
	})

	t.Run("Unwrap returns the cause", func(t *testing.T) {
		cause := errors.New("original error")
		err := Wrap(ErrCodeStore, "store error", cause)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"TransportLost", func() *AppError { return TransportLost(errors.New("eof")) }, ErrCodeTransportLost},
		{"AuthFailed", func() *AppError { return AuthFailed(errors.New("bad secret")) }, ErrCodeAuthFailed},
		{"ConfigRejected", func() *AppError { return ConfigRejected("care-1", errors.New("denied")) }, ErrCodeConfigRejected},
		{"Store", func() *AppError { return Store(errors.New("connection refused")) }, ErrCodeStore},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestIsTransportLost(t *testing.T) {
	t.Run("returns true for a lost transport", func(t *testing.T) {
		assert.True(t, IsTransportLost(TransportLost(errors.New("eof"))))
	})

	t.Run("returns true for a wrapped lost transport", func(t *testing.T) {
		err := fmt.Errorf("pump failed: %w", TransportLost(errors.New("eof")))
		assert.True(t, IsTransportLost(err))
	})

	t.Run("returns false for other faults", func(t *testing.T) {
		assert.False(t, IsTransportLost(AuthFailed(errors.New("bad secret"))))
		assert.False(t, IsTransportLost(errors.New("plain error")))
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns the code of an AppError", func(t *testing.T) {
		assert.Equal(t, ErrCodeStore, GetCode(Store(errors.New("down"))))
	})

	t.Run("returns internal for plain errors", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}
