// Package thumbnail extracts a still frame from spooled video files to use
// as the video's cover image. Extraction shells out to ffprobe and ffmpeg;
// failures are non-fatal and recorded on the asset, never propagated as
// pipeline errors.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/internal/config"
)

// Generator produces a thumbnail image file from a video file and returns
// the image path.
type Generator interface {
	Generate(ctx context.Context, videoPath string) (string, error)
}

// FFmpegGenerator extracts the frame at min(1s, 10% of duration) as a PNG.
type FFmpegGenerator struct {
	log     *slog.Logger
	ffmpeg  string
	ffprobe string
	outDir  string
}

func NewFFmpegGenerator(log *slog.Logger, cfg config.ThumbnailConfig, outDir string) *FFmpegGenerator {
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := cfg.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &FFmpegGenerator{
		log:     log.With(slog.String("service", "thumbnail")),
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		outDir:  outDir,
	}
}

func (g *FFmpegGenerator) Generate(ctx context.Context, videoPath string) (string, error) {
	seek := SeekOffset(g.probeDuration(ctx, videoPath))
	out := filepath.Join(g.outDir, uuid.NewString()+".png")

	cmd := exec.CommandContext(ctx, g.ffmpeg,
		"-ss", fmt.Sprintf("%.3f", seek.Seconds()),
		"-i", videoPath,
		"-frames:v", "1",
		"-y", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("extract frame: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// probeDuration asks ffprobe for the container duration. Zero means
// unknown; SeekOffset then falls back to half a second in.
func (g *FFmpegGenerator) probeDuration(ctx context.Context, videoPath string) time.Duration {
	cmd := exec.CommandContext(ctx, g.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		g.log.Debug("ffprobe failed", slog.String("path", videoPath), slog.Any("error", err))
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// SeekOffset picks the frame position: 10% into the video, capped at one
// second so long videos do not skip past the opening shot. Unknown durations
// seek half a second in to skip any leading black frame.
func SeekOffset(duration time.Duration) time.Duration {
	if duration <= 0 {
		return 500 * time.Millisecond
	}
	tenth := duration / 10
	if tenth > time.Second {
		return time.Second
	}
	return tenth
}

// Disabled is a Generator for deployments without ffmpeg installed.
type Disabled struct{}

func (Disabled) Generate(ctx context.Context, videoPath string) (string, error) {
	return "", fmt.Errorf("thumbnail generation disabled")
}
