package graph

import (
	"net/url"

	"social-publisher/domain/apperror"
)

const (
	hintReconnect   = "Reconnect your account; the platform no longer accepts this access token."
	hintPermissions = "Grant the publishing permissions requested during connection, then reconnect your account."
	hintVideo       = "Video must be an H.264/AAC MP4 or MOV, 3 to 90 seconds long, at most 1920px wide and under 300MB."
	hintImage       = "Image must be a JPEG under 8MB with an aspect ratio between 4:5 and 1.91:1."
	hintMediaFetch  = "The platform could not download the media. Make sure the URL is public and does not require authentication."
	hintRateLimit   = "The platform rate limit was reached; try again in a few minutes."
	hintDailyLimit  = "The daily publishing limit for this account was reached; try again in 24 hours."
	hintTemporary   = "The platform reported a temporary problem; try again shortly."
)

// remediation derives a user facing hint. Subcodes are checked before codes.
func remediation(pe *apperror.ProviderError, params url.Values) string {
	switch pe.Subcode {
	case SubcodeDailyLimitReached:
		return hintDailyLimit
	case SubcodeMediaFetchTimeout:
		return hintMediaFetch
	case SubcodeVideoFormat:
		if params.Get("image_url") != "" {
			return hintImage
		}
		return hintVideo
	}
	switch {
	case pe.Code == CodeInvalidToken:
		return hintReconnect
	case pe.Code == CodePermissionDenied || pe.Code == CodePermissionError:
		return hintPermissions
	case pe.Code == CodeMediaFetchFailed:
		return hintMediaFetch
	case pe.Code == CodeInvalidParameter && params.Get("video_url") != "":
		return hintVideo
	case pe.Code == CodeInvalidParameter && params.Get("image_url") != "":
		return hintImage
	case isRateLimit(pe.Code):
		return hintRateLimit
	case pe.Code == CodeUnknown || pe.Code == CodeGenericOAuthException:
		return hintTemporary
	}
	return ""
}
