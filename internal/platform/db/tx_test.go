package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("syntax error at or near")))
	assert.True(t, IsUnavailable(dialErr))
	assert.True(t, IsUnavailable(fmt.Errorf("query history: %w", dialErr)))
	assert.True(t, IsUnavailable(fmt.Errorf("acquire: %w", errors.New("closed pool"))))
	assert.True(t, IsUnavailable(context.DeadlineExceeded), "deadline exceeded is a net.Error timeout")
}

func TestTxFromContext_Empty(t *testing.T) {
	assert.Nil(t, TxFromContext(context.Background()))
}
