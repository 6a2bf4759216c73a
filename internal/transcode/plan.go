package transcode

import (
	"fmt"
	"strings"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/go-playground/validator/v10"
)

// Plan is the ordered, immutable set of renditions every run produces.
type Plan struct {
	profiles []models.RenditionProfile
}

var defaultProfiles = []models.RenditionProfile{
	{Label: "360p", VideoBitrateKbps: 800, AudioBitrateKbps: 96, Width: 640, Height: 360},
	{Label: "480p", VideoBitrateKbps: 1400, AudioBitrateKbps: 128, Width: 854, Height: 480},
	{Label: "720p", VideoBitrateKbps: 2800, AudioBitrateKbps: 128, Width: 1280, Height: 720},
}

var defaultPlan = mustPlan(defaultProfiles...)

// DefaultPlan is the 360p/480p/720p ladder.
func DefaultPlan() *Plan {
	return defaultPlan
}

func mustPlan(profiles ...models.RenditionProfile) *Plan {
	p, err := NewPlan(profiles...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPlan validates profiles and freezes their order. The plan must be
// non-empty and labels must be unique.
func NewPlan(profiles ...models.RenditionProfile) (*Plan, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("rendition plan: no profiles")
	}
	validate := validator.New()
	seen := make(map[string]struct{}, len(profiles))
	for i, p := range profiles {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("rendition plan: profile %d (%q): %w", i, p.Label, err)
		}
		if err := checkLabel(p.Label); err != nil {
			return nil, fmt.Errorf("rendition plan: profile %d: %w", i, err)
		}
		if _, dup := seen[p.Label]; dup {
			return nil, fmt.Errorf("rendition plan: duplicate label %q", p.Label)
		}
		seen[p.Label] = struct{}{}
	}
	frozen := make([]models.RenditionProfile, len(profiles))
	copy(frozen, profiles)
	return &Plan{profiles: frozen}, nil
}

// checkLabel keeps a label a single directory name below the output directory.
func checkLabel(label string) error {
	if label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("label %q is not a plain directory name", label)
	}
	return nil
}

// PlanFromConfig builds the configured ladder, falling back to DefaultPlan
// when none is configured.
func PlanFromConfig(cfg config.TranscodeConfig) (*Plan, error) {
	if len(cfg.Renditions) == 0 {
		return DefaultPlan(), nil
	}
	profiles := make([]models.RenditionProfile, 0, len(cfg.Renditions))
	for _, r := range cfg.Renditions {
		profiles = append(profiles, models.RenditionProfile{
			Label:            r.Label,
			VideoBitrateKbps: r.VideoBitrateKbps,
			AudioBitrateKbps: r.AudioBitrateKbps,
			Width:            r.Width,
			Height:           r.Height,
		})
	}
	return NewPlan(profiles...)
}

// Profiles returns a copy of the profiles in plan order.
func (p *Plan) Profiles() []models.RenditionProfile {
	out := make([]models.RenditionProfile, len(p.profiles))
	copy(out, p.profiles)
	return out
}

func (p *Plan) Len() int {
	return len(p.profiles)
}
