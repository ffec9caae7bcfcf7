package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("dev", "warn")
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	fallback := NewLogger("production", "loud")
	assert.True(t, fallback.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, fallback.Core().Enabled(zapcore.DebugLevel))
}

func TestLoadCatalogAppliesOverrides(t *testing.T) {
	repo := appointment.NewInMemoryRepository()
	base := catalog.Default()

	same, err := LoadCatalog(context.Background(), repo, base, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, base, same)

	repo.SetSlotOverrides(
		map[string]int{"09-11": 1},
		map[string]map[catalog.ResourceKind]int{"13-15": {catalog.ResourceBraille: 4}},
	)
	c, err := LoadCatalog(context.Background(), repo, base, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Capacity("09-11"))
	assert.Equal(t, 4, c.Quota("13-15")[catalog.ResourceBraille])
	assert.Equal(t, base.Capacity("13-15"), c.Capacity("13-15"))
	assert.Equal(t, 8, base.Capacity("09-11"))
}
