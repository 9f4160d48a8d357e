package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
)

// ErrConfigInvalid indicates a malformed destination config. The caller is
// expected to fix the config and retry.
var ErrConfigInvalid = errors.New("invalid destination config")

// Default encoding settings applied to a destination config.
const (
	DefaultWidth       = 1920
	DefaultHeight      = 1080
	DefaultFrameRate   = 30
	DefaultBitrateKbps = 3500
)

// rtmpBases maps each supported platform to its fixed RTMP ingest base URL.
// The custom platform requires an explicit URL instead.
var rtmpBases = map[domain.Platform]string{
	domain.PlatformYouTube:  "rtmp://a.rtmp.youtube.com/live2",
	domain.PlatformTwitch:   "rtmp://live.twitch.tv/app",
	domain.PlatformFacebook: "rtmps://live-api-s.facebook.com:443/rtmp",
}

// ValidateConfig validates a destination config in place, applying default
// values for unset fields. All problems are reported together.
func ValidateConfig(cfg *domain.DestinationConfig) error {
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.FrameRate == 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.BitrateKbps == 0 {
		cfg.BitrateKbps = DefaultBitrateKbps
	}

	var err error

	if _, ok := rtmpBases[cfg.Platform]; !ok && cfg.Platform != domain.PlatformCustom {
		err = errors.Join(err, fmt.Errorf("%w: unknown platform %q", ErrConfigInvalid, cfg.Platform))
	}
	if cfg.Platform == domain.PlatformCustom && cfg.RTMPURL == "" {
		err = errors.Join(err, fmt.Errorf("%w: custom platform requires an RTMP URL", ErrConfigInvalid))
	}
	if strings.TrimSpace(cfg.StreamKey) == "" {
		err = errors.Join(err, fmt.Errorf("%w: stream key is required", ErrConfigInvalid))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 || cfg.BitrateKbps <= 0 {
		err = errors.Join(err, fmt.Errorf("%w: resolution, framerate and bitrate must be positive", ErrConfigInvalid))
	}

	return err
}

// targetURL resolves the full publishing URL for a validated config. The
// stream key forms the final path component.
func targetURL(cfg domain.DestinationConfig) string {
	base := rtmpBases[cfg.Platform]
	if cfg.Platform == domain.PlatformCustom {
		base = cfg.RTMPURL
	}
	return strings.TrimSuffix(base, "/") + "/" + cfg.StreamKey
}
