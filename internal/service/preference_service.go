package service

import (
	"log/slog"
	"math"
	"sync"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// defaultVolume matches the playback service's initial volume.
const defaultVolume = 0.8

// PreferenceService persists the volume and the last project.
// It follows volume changes on the event bus so the UI never saves explicitly.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	repository ports.PreferencesRepository
	bus        ports.EventBus

	// Cached preferences
	volume  float64
	project domain.SceneAssets
	subs    []domain.SubscriptionID

	mu sync.RWMutex
}

// NewPreferenceService creates a preference service and loads the stored values.
func NewPreferenceService(
	logger *slog.Logger,
	repository ports.PreferencesRepository,
	bus ports.EventBus,
) *PreferenceService {
	s := &PreferenceService{
		logger:     logger,
		repository: repository,
		bus:        bus,
		volume:     defaultVolume,
	}

	s.loadPreferences()
	s.subs = []domain.SubscriptionID{
		bus.Subscribe(domain.EventVolumeChanged, s.onVolumeChanged),
	}

	logger.Debug("preference service initialized", slog.Float64("volume", s.volume))
	return s
}

// loadPreferences loads all preferences from the repository into the cache.
func (s *PreferenceService) loadPreferences() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vol, err := s.repository.LoadVolume(); err == nil {
		s.volume = vol
	} else {
		s.logger.Warn("failed to load volume", slog.Any("error", err))
	}

	if project, err := s.repository.LoadProject(); err == nil {
		s.project = project
	} else {
		s.logger.Warn("failed to load last project", slog.Any("error", err))
	}
}

func (s *PreferenceService) onVolumeChanged(event domain.Event) {
	e, ok := event.(domain.VolumeChangedEvent)
	if !ok {
		return
	}
	if err := s.SetVolume(e.Volume); err != nil {
		s.logger.Warn("failed to persist volume", slog.Any("error", err))
	}
}

// GetVolume returns the saved volume preference (0.0 to 1.0).
func (s *PreferenceService) GetVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.volume
}

// SetVolume saves the volume preference (0.0 to 1.0).
func (s *PreferenceService) SetVolume(volume float64) error {
	if math.IsNaN(volume) || volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repository.SaveVolume(volume); err != nil {
		return err
	}
	s.volume = volume
	return nil
}

// LastProject returns the last saved scene inputs.
func (s *PreferenceService) LastProject() domain.SceneAssets {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.project
}

// SaveProject stores the scene inputs as the last project.
func (s *PreferenceService) SaveProject(assets domain.SceneAssets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repository.SaveProject(assets); err != nil {
		return err
	}
	s.project = assets
	return nil
}

// ResetToDefaults clears the store and restores default values.
func (s *PreferenceService) ResetToDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repository.Clear(); err != nil {
		return err
	}
	s.volume = defaultVolume
	s.project = domain.SceneAssets{}
	return nil
}

// Shutdown stops following the event bus.
func (s *PreferenceService) Shutdown() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, id := range subs {
		s.bus.Unsubscribe(id)
	}
	return nil
}

// LoadProject returns the cached last project.
func (s *PreferenceService) LoadProject() (domain.SceneAssets, error) {
	return s.LastProject(), nil
}

var _ ProjectStore = (*PreferenceService)(nil)
