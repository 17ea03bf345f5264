package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestBuild_MemoryStore(t *testing.T) {
	cfg := config.Config{
		Store:               config.StoreMemory,
		LockMode:            config.LockLocal,
		Notifier:            config.NotifierLog,
		RequireConfirmation: true,
		DefaultGranularity:  30 * time.Minute,
	}

	deps, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer deps.Close()

	assert.Nil(t, deps.Pool)
	assert.Nil(t, deps.Redis)
	assert.Empty(t, deps.Checks)
	assert.IsType(t, &appointment.MemoryRepository{}, deps.Repo)
	require.NotNil(t, deps.Service)

	_, err = deps.Service.GetSchedule(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointment.ErrProviderNotFound)
}
