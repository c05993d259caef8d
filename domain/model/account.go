package model

import "strings"

// Platform identifies a connected provider account type.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformGoogle    Platform = "google"
)

// ParsePlatform normalizes a user supplied platform name.
func ParsePlatform(s string) (Platform, bool) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformInstagram, PlatformFacebook, PlatformGoogle:
		return p, true
	default:
		return "", false
	}
}

// AccountRef points at the stored credential of one connected account.
type AccountRef struct {
	UserID   string   `json:"user_id"`
	Platform Platform `json:"platform"`
}

// Key is used for in-process deduplication and cache keys.
func (a AccountRef) Key() string {
	return a.UserID + ":" + string(a.Platform)
}
