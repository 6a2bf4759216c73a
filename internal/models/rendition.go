package models

import "fmt"

// RenditionProfile is one target encoding of the source video.
type RenditionProfile struct {
	Label            string `json:"label" validate:"required,excludesall=/"`
	VideoBitrateKbps int    `json:"video_bitrate_kbps" validate:"gt=0"`
	AudioBitrateKbps int    `json:"audio_bitrate_kbps" validate:"gt=0"`
	Width            int    `json:"width" validate:"gt=0"`
	Height           int    `json:"height" validate:"gt=0"`
}

// Bandwidth is the advertised BANDWIDTH attribute. Audio is deliberately not included.
func (p RenditionProfile) Bandwidth() int {
	return p.VideoBitrateKbps * 1000
}

func (p RenditionProfile) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// RenditionArtifact is what a successful encode leaves behind.
type RenditionArtifact struct {
	Profile              RenditionProfile `json:"profile"`
	RelativePlaylistPath string           `json:"relative_playlist_path"`
}
