// Package ports define repository interfaces for data persistence abstraction.
package ports

import (
	"github.com/tejashwikalptaru/govis/internal/domain"
)

// PreferencesRepository handles the persistence of user preferences.
// This abstracts the Fyne preferences storage.
//
// Thread-safety: Implementations must be thread-safe.
type PreferencesRepository interface {
	// SaveVolume persists the volume level.
	SaveVolume(volume float64) error

	// LoadVolume retrieves the saved volume level.
	// If no volume was saved, returns 0.5 as default.
	LoadVolume() (float64, error)

	// SaveProject persists the last applied scene inputs.
	SaveProject(assets domain.SceneAssets) error

	// LoadProject retrieves the last applied scene inputs.
	// If nothing was saved, returns a zero SceneAssets (not an error).
	LoadProject() (domain.SceneAssets, error)

	// Clear removes all saved preferences.
	Clear() error
}
