// Package platform describes the deployment targets a model's size score is reported for.
package platform

import (
	"fmt"
	"strings"
)

// Platform is one hardware target in a rating document's size_score breakdown.
type Platform struct {
	Key         string // JSON key in size_score, e.g. "raspberry_pi"
	Label       string // Display label
	Class       string // edge, desktop, server
	MemoryHintG int    // Rough memory budget in GiB used for hints in reports
}

// Keys of the size_score breakdown as returned by the rating endpoint.
const (
	RaspberryPi = "raspberry_pi"
	JetsonNano  = "jetson_nano"
	DesktopPC   = "desktop_pc"
	AWSServer   = "aws_server"
)

// PredefinedPlatforms returns the four size-score targets in display order.
func PredefinedPlatforms() []Platform {
	return []Platform{
		{Key: RaspberryPi, Label: "Raspberry Pi", Class: "edge", MemoryHintG: 4},
		{Key: JetsonNano, Label: "Jetson Nano", Class: "edge", MemoryHintG: 4},
		{Key: DesktopPC, Label: "Desktop PC", Class: "desktop", MemoryHintG: 32},
		{Key: AWSServer, Label: "AWS Server", Class: "server", MemoryHintG: 256},
	}
}

// Keys returns the size_score keys in display order.
func Keys() []string {
	platforms := PredefinedPlatforms()
	keys := make([]string, 0, len(platforms))
	for _, p := range platforms {
		keys = append(keys, p.Key)
	}
	return keys
}

// FindPlatform finds a platform by key or by its label, ignoring case and separators.
func FindPlatform(s string) (Platform, error) {
	want := normalize(s)
	for _, p := range PredefinedPlatforms() {
		if normalize(p.Key) == want || normalize(p.Label) == want {
			return p, nil
		}
	}
	return Platform{}, fmt.Errorf("unknown platform: %s", s)
}

// Label returns the display label for a size_score key, or the key itself when unknown.
func Label(key string) string {
	if p, err := FindPlatform(key); err == nil {
		return p.Label
	}
	return key
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
