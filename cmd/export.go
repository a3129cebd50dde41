package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/govis/internal/app"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/service"
)

var exportFlags struct {
	assets domain.SceneAssets
	output string
	fps    int
	width  int
	height int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the visual to a video file without opening a window",
	Long: `Export renders the composition offline on a frame clock, so the video is
deterministic and usually finishes faster than the track plays. The track is
muxed as the soundtrack by ffmpeg.

Size and frame rate default to GOVIS_EXPORT_WIDTH, GOVIS_EXPORT_HEIGHT and
GOVIS_EXPORT_FPS. When GOVIS_MINIO_ENDPOINT is set the video is uploaded.`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.assets.AudioPath, "audio", "", "soundtrack file")
	f.StringVar(&exportFlags.assets.Title, "title", "", "label title (defaults to the track's tags)")
	f.StringVar(&exportFlags.assets.Author, "author", "", "label author (defaults to the track's tags)")
	f.StringVar(&exportFlags.assets.EmblemPath, "emblem", "", "emblem image (defaults to the cover art)")
	f.StringVar(&exportFlags.assets.BackgroundPath, "background", "", "background image")
	f.StringVarP(&exportFlags.output, "output", "o", "", "destination file (a generated name when empty)")
	f.IntVar(&exportFlags.fps, "fps", 0, "frame rate, 24 to 60")
	f.IntVar(&exportFlags.width, "width", 0, "frame width in pixels")
	f.IntVar(&exportFlags.height, "height", 0, "frame height in pixels")
	_ = exportCmd.MarkFlagRequired("audio")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	cfg.Headless = true

	settings := domain.ExportSettings{
		Width:  firstPositive(exportFlags.width, cfg.Settings.ExportWidth),
		Height: firstPositive(exportFlags.height, cfg.Settings.ExportHeight),
		FPS:    firstPositive(exportFlags.fps, cfg.Settings.ExportFPS),
		Output: exportFlags.output,
		Mode:   domain.ExportOffline,
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	out := cmd.OutOrStdout()
	lastPercent := -1
	application.GetEventBus().Subscribe(domain.EventExportProgress, func(e domain.Event) {
		p := e.(domain.ExportProgressEvent).Progress
		percent := int(p.Percentage())
		if percent < 0 || percent == lastPercent {
			return
		}
		lastPercent = percent
		fmt.Fprintf(out, "\rrendering %3d%% (%d/%d frames)", percent, p.Frame, p.TotalFrames)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.Export(ctx, exportFlags.assets, settings)
	fmt.Fprintln(out)
	if err != nil {
		if service.IsCancelled(err) {
			return fmt.Errorf("export interrupted: %w", err)
		}
		return err
	}

	fmt.Fprintf(out, "exported %d frames (%s) to %s\n", result.Frames, result.Duration.Round(time.Millisecond), result.Location)
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
