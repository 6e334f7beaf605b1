package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	withCause := NewEmbeddingError(errors.New("rate limited"))
	assert.Equal(t, "[EMBEDDING_ERROR] embedding failed: rate limited", withCause.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewUpstreamGenerationError(cause)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"domain error", NewInvalidChunkError("missing embedding"), ErrCodeInvalidChunk},
		{"wrapped", fmt.Errorf("outer: %w", NewSearchUnavailableError(errors.New("503"))), ErrCodeSearchUnavailable},
		{"stage error", &StageError{Stage: StageEmbedding, Err: NewEmbeddingError(nil)}, ErrCodeEmbedding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrEmptyQuery, ErrCodeValidation))
	assert.False(t, IsCode(ErrEmptyQuery, ErrCodeEmbedding))
	assert.False(t, IsCode(nil, ""))
}

func TestNewContextError(t *testing.T) {
	timeout := NewContextError(fmt.Errorf("fetch: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeTimeout, timeout.Code)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	canceled := NewContextError(context.Canceled)
	assert.Equal(t, ErrCodeCanceled, canceled.Code)
	assert.ErrorIs(t, canceled, context.Canceled)
}

func TestStageError(t *testing.T) {
	cause := NewCanceledError(context.Canceled)
	err := fmt.Errorf("run: %w", &StageError{Stage: StageFetching, Err: cause})

	assert.Equal(t, StageFetching, StageOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "stage fetching")
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}

func TestStages_Order(t *testing.T) {
	assert.Equal(t, StageRewriting, Stages[0])
	assert.Equal(t, StageDone, Stages[len(Stages)-1])
	assert.Len(t, Stages, 11)
}
