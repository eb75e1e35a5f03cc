package queue

import (
	"testing"

	"school-journal/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDeadLetterName(t *testing.T) {
	cfg := &config.Config{}
	cfg.Defaults()

	assert.Equal(t, "journal:imports:dlq", DeadLetterName(cfg.Redis.ImportQueue, cfg.Redis.DLQSuffix))
}
