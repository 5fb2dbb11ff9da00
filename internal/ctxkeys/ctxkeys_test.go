package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithAdminUser(ctx, "admin")
	ctx = WithSessionID(ctx, "sess-1")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	user, ok := AdminUser(ctx)
	assert.True(t, ok)
	assert.Equal(t, "admin", user)

	sid, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sid)

	_, ok = AdminUser(WithAdminUser(context.Background(), ""))
	assert.False(t, ok, "empty values are treated as absent")
}
