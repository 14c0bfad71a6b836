package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetRequestID(nil))

	ctx := WithRequestID(context.Background(), "rid-9")
	assert.Equal(t, "rid-9", GetRequestID(ctx))

	// a plain string key must not collide
	other := context.WithValue(context.Background(), "request_id", "spoofed")
	assert.Empty(t, GetRequestID(other))
}
