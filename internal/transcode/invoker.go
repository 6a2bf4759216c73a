package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
)

const (
	PlaylistName       = "playlist.m3u8"
	SegmentPattern     = "segment_%03d.ts"
	waitDelay          = 5 * time.Second
	renditionDirPerm   = 0o755
	defaultSegmentSecs = 10
)

// EncodeInvoker produces one rendition of a source file. Every failure is
// returned as an *EncodeError.
type EncodeInvoker interface {
	Encode(ctx context.Context, sourcePath, outputDirectory string, profile models.RenditionProfile) (models.RenditionArtifact, error)
}

type FFmpegOptions struct {
	Binary         string
	VideoCodec     string
	AudioCodec     string
	Preset         string
	SegmentSeconds int
	// Timeout bounds a single rendition encode. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

func OptionsFromConfig(cfg config.TranscodeConfig) FFmpegOptions {
	return FFmpegOptions{
		Binary:         cfg.FFmpegBinary,
		VideoCodec:     cfg.VideoCodec,
		AudioCodec:     cfg.AudioCodec,
		Preset:         cfg.Preset,
		SegmentSeconds: cfg.SegmentSeconds,
		Timeout:        cfg.EncodeTimeout,
	}
}

// FFmpegInvoker encodes renditions with an ffmpeg binary writing HLS output.
type FFmpegInvoker struct {
	opts   FFmpegOptions
	logger logger.Logger
}

func NewFFmpegInvoker(opts FFmpegOptions, log logger.Logger) *FFmpegInvoker {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.VideoCodec == "" {
		opts.VideoCodec = "libx264"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "aac"
	}
	if opts.Preset == "" {
		opts.Preset = "veryfast"
	}
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = defaultSegmentSecs
	}
	return &FFmpegInvoker{opts: opts, logger: log}
}

// Args builds the ffmpeg argument list for one rendition: constant target
// bitrates, scaled output, and an HLS playlist that keeps every segment.
func (f *FFmpegInvoker) Args(sourcePath, outputDirectory string, profile models.RenditionProfile) []string {
	renditionDir := filepath.Join(outputDirectory, profile.Label)
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", sourcePath,
		"-c:v", f.opts.VideoCodec,
		"-c:a", f.opts.AudioCodec,
		"-b:v", fmt.Sprintf("%dk", profile.VideoBitrateKbps),
		"-b:a", fmt.Sprintf("%dk", profile.AudioBitrateKbps),
		"-vf", fmt.Sprintf("scale=%d:%d", profile.Width, profile.Height),
		"-preset", f.opts.Preset,
		"-hls_time", strconv.Itoa(f.opts.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(renditionDir, SegmentPattern),
		"-f", "hls",
		filepath.Join(renditionDir, PlaylistName),
	}
}

func (f *FFmpegInvoker) Encode(ctx context.Context, sourcePath, outputDirectory string, profile models.RenditionProfile) (models.RenditionArtifact, error) {
	renditionDir := filepath.Join(outputDirectory, profile.Label)
	if err := os.MkdirAll(renditionDir, renditionDirPerm); err != nil {
		return models.RenditionArtifact{}, &EncodeError{Profile: profile, Err: fmt.Errorf("create rendition directory: %w", err)}
	}

	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	args := f.Args(sourcePath, outputDirectory, profile)
	cmd := exec.CommandContext(ctx, f.opts.Binary, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Debugf("Running encoder for %s: %s %s", profile.Label, f.opts.Binary, strings.Join(args, " "))
	err := cmd.Run()
	diagnostic := strings.TrimSpace(stderr.String())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.RenditionArtifact{}, &EncodeError{
				Profile:    profile,
				ExitCode:   exitCode(cmd),
				Diagnostic: diagnostic,
				Cancelled:  true,
				Err:        ctxErr,
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return models.RenditionArtifact{}, &EncodeError{
				Profile:    profile,
				ExitCode:   exitErr.ExitCode(),
				Diagnostic: diagnostic,
				Err:        err,
			}
		}
		return models.RenditionArtifact{}, &EncodeError{
			Profile:    profile,
			ExitCode:   -1,
			Diagnostic: diagnostic,
			Err:        fmt.Errorf("launch encoder: %w", err),
		}
	}

	if _, err := os.Stat(filepath.Join(renditionDir, PlaylistName)); err != nil {
		return models.RenditionArtifact{}, &EncodeError{
			Profile:    profile,
			Diagnostic: diagnostic,
			Err:        fmt.Errorf("encoder exited cleanly but produced no playlist: %w", err),
		}
	}

	return models.RenditionArtifact{
		Profile:              profile,
		RelativePlaylistPath: path.Join(profile.Label, PlaylistName),
	}, nil
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
