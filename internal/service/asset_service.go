package service

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"sync"

	// Cover art is usually JPEG or PNG.
	_ "image/jpeg"
	_ "image/png"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// SceneTarget is the part of the scene the asset service drives.
type SceneTarget interface {
	SetLabel(title, author string)
	ReplaceBackground(path string)
	ReplaceEmblem(path string)
	SetEmblemImage(img image.Image, source string)
}

// TrackLoader loads the soundtrack.
type TrackLoader interface {
	LoadTrack(path string) error
}

// ProjectStore keeps the last applied scene inputs.
type ProjectStore interface {
	SaveProject(assets domain.SceneAssets) error
	LoadProject() (domain.SceneAssets, error)
}

// MetadataReader reads tags from an audio file.
type MetadataReader interface {
	GetMetadata(filePath string) (*domain.TrackInfo, error)
}

// AssetService applies the user's scene inputs: soundtrack, label and images.
// It also reloads images when their files change on disk.
//
// Thread-safety: Apply calls are serialized.
type AssetService struct {
	logger   *slog.Logger
	scene    SceneTarget
	tracks   TrackLoader
	metadata MetadataReader
	bus      ports.EventBus
	watcher  ports.AssetWatcher // optional
	projects ProjectStore       // optional

	mu      sync.Mutex
	current domain.SceneAssets
	subID   domain.SubscriptionID
}

// NewAssetService creates an asset service. bus, watcher and projects may be nil;
// without a bus, file changes are not followed.
func NewAssetService(
	logger *slog.Logger,
	scene SceneTarget,
	tracks TrackLoader,
	metadata MetadataReader,
	bus ports.EventBus,
	watcher ports.AssetWatcher,
	projects ProjectStore,
) *AssetService {
	s := &AssetService{
		logger:   logger,
		scene:    scene,
		tracks:   tracks,
		metadata: metadata,
		bus:      bus,
		watcher:  watcher,
		projects: projects,
	}
	if bus != nil {
		s.subID = bus.Subscribe(domain.EventAssetChanged, s.handleAssetChanged)
	}
	return s
}

// Apply merges assets into the current inputs (empty fields keep their value)
// and updates the soundtrack, label and textures that changed.
//
// A missing title or author is taken from the audio file's tags, and when no
// emblem image was ever given the embedded cover art is used instead.
func (s *AssetService) Apply(assets domain.SceneAssets) (domain.SceneAssets, error) {
	next, err := s.apply(assets)
	if err != nil {
		return next, err
	}

	s.logger.Debug("assets applied",
		slog.String("audio", next.AudioPath),
		slog.String("label", next.Label()))
	if s.bus != nil {
		s.bus.Publish(domain.NewAssetsAppliedEvent(next))
	}
	return next, nil
}

func (s *AssetService) apply(assets domain.SceneAssets) (domain.SceneAssets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	next := merge(prev, assets)
	audioChanged := next.AudioPath != "" && next.AudioPath != prev.AudioPath

	if audioChanged {
		if err := s.tracks.LoadTrack(next.AudioPath); err != nil {
			return prev, domain.NewServiceError("AssetService", "Apply", "failed to load soundtrack", err)
		}
	}

	var info *domain.TrackInfo
	if next.AudioPath != "" && (audioChanged || next.Title == "" || next.Author == "") {
		info = s.readTags(next.AudioPath)
	}
	if info != nil {
		// Tag defaults only fill what the user left empty for this track
		if assets.Title == "" && (audioChanged || next.Title == "") {
			next.Title = info.Title
		}
		if assets.Author == "" && (audioChanged || next.Author == "") {
			next.Author = info.Artist
		}
	}

	if next.BackgroundPath != "" && next.BackgroundPath != prev.BackgroundPath {
		s.scene.ReplaceBackground(next.BackgroundPath)
		s.watch(domain.ElementBackground, next.BackgroundPath)
	}

	switch {
	case next.EmblemPath != "" && next.EmblemPath != prev.EmblemPath:
		s.scene.ReplaceEmblem(next.EmblemPath)
		s.watch(domain.ElementEmblem, next.EmblemPath)
	case next.EmblemPath == "" && audioChanged && info != nil && len(info.Picture) > 0:
		s.applyCoverArt(next.AudioPath, info.Picture)
	}

	s.scene.SetLabel(next.Title, next.Author)
	s.current = next

	if s.projects != nil {
		if err := s.projects.SaveProject(next); err != nil {
			s.logger.Warn("failed to save project", slog.Any("error", err))
		}
	}

	return next, nil
}

// Current returns the effective inputs of the last Apply.
func (s *AssetService) Current() domain.SceneAssets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Restore applies the last saved project, if any.
func (s *AssetService) Restore() (domain.SceneAssets, error) {
	if s.projects == nil {
		return s.Current(), nil
	}
	saved, err := s.projects.LoadProject()
	if err != nil {
		return s.Current(), fmt.Errorf("load project: %w", err)
	}
	if saved == (domain.SceneAssets{}) {
		return s.Current(), nil
	}
	return s.Apply(saved)
}

// Close stops reacting to asset file changes.
func (s *AssetService) Close() {
	if s.bus != nil {
		s.bus.Unsubscribe(s.subID)
	}
}

func (s *AssetService) readTags(path string) *domain.TrackInfo {
	if s.metadata == nil {
		return nil
	}
	info, err := s.metadata.GetMetadata(path)
	if err != nil {
		s.logger.Debug("no tags for soundtrack", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	return info
}

func (s *AssetService) applyCoverArt(audioPath string, picture []byte) {
	img, _, err := image.Decode(bytes.NewReader(picture))
	if err != nil {
		s.logger.Warn("embedded cover art unreadable", slog.String("path", audioPath), slog.Any("error", err))
		return
	}
	if s.watcher != nil {
		s.watcher.Unwatch(domain.ElementEmblem)
	}
	s.scene.SetEmblemImage(img, "cover:"+audioPath)
}

func (s *AssetService) watch(element domain.Element, path string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Watch(element, path); err != nil {
		s.logger.Warn("cannot watch asset", slog.String("path", path), slog.Any("error", err))
	}
}

// handleAssetChanged reloads a texture whose file was rewritten.
func (s *AssetService) handleAssetChanged(event domain.Event) {
	e, ok := event.(domain.AssetChangedEvent)
	if !ok {
		return
	}

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	switch {
	case e.Element == domain.ElementBackground && e.Path == current.BackgroundPath:
		s.scene.ReplaceBackground(e.Path)
	case e.Element == domain.ElementEmblem && e.Path == current.EmblemPath:
		s.scene.ReplaceEmblem(e.Path)
	default:
		return
	}
	s.logger.Debug("asset reloaded", slog.String("element", string(e.Element)), slog.String("path", e.Path))
}

func merge(base, update domain.SceneAssets) domain.SceneAssets {
	if update.AudioPath != "" {
		base.AudioPath = update.AudioPath
	}
	if update.Title != "" {
		base.Title = update.Title
	}
	if update.Author != "" {
		base.Author = update.Author
	}
	if update.EmblemPath != "" {
		base.EmblemPath = update.EmblemPath
	}
	if update.BackgroundPath != "" {
		base.BackgroundPath = update.BackgroundPath
	}
	return base
}
