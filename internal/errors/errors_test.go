package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCodeOfInnerAppError(t *testing.T) {
	inner := ConfigInvalid("walkers must be >= 6")
	err := Wrap(inner, "load run config")

	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "load run config: walkers must be >= 6", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	err := Wrapf(fmt.Errorf("boom"), "stage %s", "sampling")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestDataIntegrity_PreservesCause(t *testing.T) {
	cause := stderrors.New("sigma must be > 0")
	err := DataIntegrity("load sne dataset", cause)

	assert.Equal(t, CodeDataIntegrity, GetCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "load sne dataset failed")
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, stderrors.New("no run"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(stderrors.New("plain")))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestNotFound(t *testing.T) {
	err := NotFound("route /posteriors")
	assert.Equal(t, "route /posteriors not found", err.Error())
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, CodeNotFound, GetCode(Wrap(err, "serve")))
}
