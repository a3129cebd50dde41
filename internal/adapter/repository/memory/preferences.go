// Package memory provides repositories backed by the Fyne preferences store.
package memory

import (
	"encoding/json"
	"sync"

	"fyne.io/fyne/v2"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

const (
	keyVolume  = "preferences.volume"
	keyProject = "preferences.last_project"

	// DefaultVolume is reported when no volume was saved.
	DefaultVolume = 0.5
)

// PreferencesRepository implements ports.PreferencesRepository using Fyne preferences.
// This provides a thin wrapper around Fyne's preferences system with proper error handling.
//
// Thread-safe: All operations protected by sync.RWMutex.
type PreferencesRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewPreferencesRepository creates a new preferences repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewPreferencesRepository(prefs fyne.Preferences) *PreferencesRepository {
	return &PreferencesRepository{
		prefs: prefs,
	}
}

// SaveVolume persists the volume level.
func (r *PreferencesRepository) SaveVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.NewValidationError("volume", volume, "must be between 0.0 and 1.0")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetFloat(keyVolume, volume)
	return nil
}

// LoadVolume retrieves the saved volume level.
func (r *PreferencesRepository) LoadVolume() (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.prefs.FloatWithFallback(keyVolume, DefaultVolume), nil
}

// project is the stored form of domain.SceneAssets.
type project struct {
	AudioPath      string `json:"audio_path,omitempty"`
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
	EmblemPath     string `json:"emblem_path,omitempty"`
	BackgroundPath string `json:"background_path,omitempty"`
}

// SaveProject persists the last applied scene inputs as JSON.
func (r *PreferencesRepository) SaveProject(assets domain.SceneAssets) error {
	data, err := json.Marshal(project(assets))
	if err != nil {
		return domain.NewRepositoryError("save", "preferences", "failed to marshal project", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetString(keyProject, string(data))
	return nil
}

// LoadProject retrieves the last applied scene inputs.
func (r *PreferencesRepository) LoadProject() (domain.SceneAssets, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := r.prefs.String(keyProject)
	if data == "" {
		return domain.SceneAssets{}, nil
	}

	var p project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return domain.SceneAssets{}, domain.NewRepositoryError("load", "preferences", "failed to unmarshal project", err)
	}
	return domain.SceneAssets(p), nil
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue(keyVolume)
	r.prefs.RemoveValue(keyProject)
	return nil
}

// Verify interface implementation
var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
