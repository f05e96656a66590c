package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := New("invest", CodeTransport, WithMessage("loan 5"), WithCause(errors.New("connection reset")))
	assert.Equal(t, "invest: transport: loan 5: connection reset", err.Error())
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New("get loan", CodeTransport, WithCause(errors.New("timeout")))
	outer := New("reconcile", CodeReconciliation, WithCause(inner))
	wrapped := fmt.Errorf("cycle aborted: %w", outer)

	assert.True(t, IsCode(wrapped, CodeReconciliation))
	assert.True(t, IsCode(wrapped, CodeTransport))
	assert.False(t, IsCode(wrapped, CodeInvalidFormat))

	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeReconciliation, code)
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New("parse", CodeInvalidFormat))
	assert.True(t, errors.Is(err, New("", CodeInvalidFormat)))
	assert.False(t, errors.Is(err, New("", CodeTransport)))
}

func TestPlainErrorHasNoCode(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsCode(nil, CodeTransport))
}
