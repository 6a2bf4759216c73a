package transcode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/google/renameio/v2"
)

const (
	manifestHeader = "#EXTM3U\n#EXT-X-VERSION:3\n"
	manifestPerm   = 0o644
)

// BuildManifest renders the master playlist for artifacts in the given order.
// Output depends only on its input.
func BuildManifest(artifacts []models.RenditionArtifact) string {
	var b strings.Builder
	b.WriteString(manifestHeader)
	for _, a := range artifacts {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", a.Profile.Bandwidth(), a.Profile.Resolution())
		b.WriteString(a.RelativePlaylistPath)
		b.WriteByte('\n')
	}
	return b.String()
}

// ManifestPath is where the master playlist of outputDirectory lives.
func ManifestPath(outputDirectory string) string {
	return filepath.Join(outputDirectory, PlaylistName)
}

// WriteManifest publishes text as the master playlist of outputDirectory.
// Readers see either the previous file or the complete new one.
func WriteManifest(outputDirectory, text string) (string, error) {
	target := ManifestPath(outputDirectory)
	pending, err := stageManifest(target, text)
	if err != nil {
		return "", err
	}
	defer pending.Cleanup()

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace manifest: %w", err)
	}
	return target, nil
}

// stageManifest writes text to a temporary file beside target. Nothing is
// visible at target until the returned file is committed.
func stageManifest(target, text string) (*renameio.PendingFile, error) {
	pending, err := renameio.NewPendingFile(
		target,
		renameio.WithTempDir(filepath.Dir(target)),
		renameio.WithPermissions(manifestPerm),
	)
	if err != nil {
		return nil, fmt.Errorf("create pending manifest: %w", err)
	}
	if _, err := pending.WriteString(text); err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("write manifest data: %w", err)
	}
	return pending, nil
}
