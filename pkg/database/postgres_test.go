package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectRejectsInvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", DefaultPoolConfig())
	assert.Error(t, err)
}

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
}
