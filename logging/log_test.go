package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))
	logger := NewLogger(true).With("rank", 3)
	assert.Same(t, logger, FromContext(WithLogger(ctx, logger)))
}
