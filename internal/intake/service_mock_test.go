package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/tests/mocks"
)

func quietConfig() Config {
	return Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID:  func() string { return "msg-1" },
	}
}

func TestReceive_ClaimErrorIsNotStored(t *testing.T) {
	inbox := new(mocks.MockInboxRepository)
	idem := new(mocks.MockIdempotencyStore)
	idem.On("Claim", mock.Anything, "bob~main", "key-1", "msg-1").Return("", false, errors.New("redis down"))

	_, err := NewService(inbox, idem, quietConfig()).Receive(context.Background(), delivery("hello", "key-1"))

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternalError, apperrors.GetErrorCode(err))
	idem.AssertExpectations(t)
	inbox.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestReceive_DuplicateSkipsAppend(t *testing.T) {
	inbox := new(mocks.MockInboxRepository)
	idem := new(mocks.MockIdempotencyStore)
	idem.On("Claim", mock.Anything, "bob~main", "key-1", "msg-1").Return("msg-0", false, nil)
	notifier := &mocks.RecordingNotifier{}

	cfg := quietConfig()
	cfg.Notifier = notifier
	receipt, err := NewService(inbox, idem, cfg).Receive(context.Background(), delivery("hello", "key-1"))

	require.NoError(t, err)
	assert.True(t, receipt.Duplicate)
	assert.Equal(t, "msg-0", receipt.MessageID)
	assert.Empty(t, notifier.Records())
	inbox.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestReceive_AppendErrorReleasesOwnClaim(t *testing.T) {
	inbox := new(mocks.MockInboxRepository)
	inbox.On("Append", mock.Anything, "bob~main", mock.Anything).Return(errors.New("disk full"))
	idem := new(mocks.MockIdempotencyStore)
	idem.On("Claim", mock.Anything, "bob~main", "key-1", "msg-1").Return("msg-1", true, nil)
	idem.On("Release", mock.Anything, "bob~main", "key-1", "msg-1").Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := NewService(inbox, idem, quietConfig()).Receive(ctx, delivery("hello", "key-1"))

	require.Error(t, err)
	inbox.AssertExpectations(t)
	idem.AssertExpectations(t)
}

func TestReceive_AppendErrorWithoutKeyReleasesNothing(t *testing.T) {
	inbox := new(mocks.MockInboxRepository)
	inbox.On("Append", mock.Anything, "bob~main", mock.Anything).Return(errors.New("disk full"))
	idem := new(mocks.MockIdempotencyStore)

	_, err := NewService(inbox, idem, quietConfig()).Receive(context.Background(), delivery("hello", ""))

	require.Error(t, err)
	idem.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	idem.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
