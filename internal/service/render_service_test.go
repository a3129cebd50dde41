package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/logger"
	"github.com/tejashwikalptaru/govis/internal/testutil"
	"github.com/tejashwikalptaru/govis/internal/visual"
)

type silentSource struct{}

func (silentSource) Snapshot() domain.FrequencySnapshot { return domain.NewSilentSnapshot(64) }

func newTestScene(t *testing.T) *visual.Scene {
	t.Helper()

	cfg := visual.DefaultSceneConfig()
	cfg.Dust.Count = 8
	scene, err := visual.NewScene(logger.NewTestLogger(), silentSource{}, visual.AlwaysPlaying{},
		nil, eventbus.NewSyncEventBus(nil), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scene.Close() })
	return scene
}

func TestRenderService_Step(t *testing.T) {
	r := NewRenderService(logger.NewTestLogger(), newTestScene(t), 30)

	var ticks []uint64
	r.OnFrame(func(tick uint64) { ticks = append(ticks, tick) })

	r.Step()
	r.Step()

	assert.Equal(t, []uint64{1, 2}, ticks)
	assert.Equal(t, uint64(2), r.Scene().Ticks())
	assert.Equal(t, 30, r.FPS())
}

func TestRenderService_DefaultFPS(t *testing.T) {
	r := NewRenderService(logger.NewTestLogger(), newTestScene(t), 0)
	assert.Equal(t, 60, r.FPS())
}

func TestRenderService_OnFrameReplaces(t *testing.T) {
	r := NewRenderService(logger.NewTestLogger(), newTestScene(t), 60)

	first, second := 0, 0
	removeFirst := r.OnFrame(func(uint64) { first++ })
	removeSecond := r.OnFrame(func(uint64) { second++ })

	r.Step()
	assert.Equal(t, 0, first, "callbacks never accumulate")
	assert.Equal(t, 1, second)

	// A stale remover does not clear the newer callback
	removeFirst()
	r.Step()
	assert.Equal(t, 2, second)

	removeSecond()
	r.Step()
	assert.Equal(t, 2, second)
}

func TestRenderService_StartStop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	scene := newTestScene(t)
	r := NewRenderService(logger.NewTestLogger(), scene, 120)

	var frames atomic.Int64
	r.OnFrame(func(uint64) { frames.Add(1) })

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	assert.ErrorIs(t, r.Start(context.Background()), ErrRenderRunning)

	assert.Eventually(t, func() bool { return frames.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	assert.False(t, r.Running())
	stopped := scene.Ticks()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, scene.Ticks(), "no ticks after Stop")

	// Stop is idempotent and the loop can be restarted
	r.Stop()
	require.NoError(t, r.Start(context.Background()))
	r.Stop()
}

func TestRenderService_ContextCancel(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	r := NewRenderService(logger.NewTestLogger(), newTestScene(t), 60)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))

	cancel()
	r.Stop()
	assert.False(t, r.Running())
}

func TestRenderService_Resize(t *testing.T) {
	r := NewRenderService(logger.NewTestLogger(), newTestScene(t), 60)

	g := r.Resize(1200)
	assert.Equal(t, 1200.0, g.Width)
	assert.Equal(t, g, r.Scene().Geometry())
}
