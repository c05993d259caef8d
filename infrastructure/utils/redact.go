package utils

import (
	"net/url"
	"sort"
)

var secretParams = map[string]struct{}{
	"access_token":      {},
	"client_secret":     {},
	"fb_exchange_token": {},
	"input_token":       {},
	"refresh_token":     {},
}

// RedactToken keeps only the last four characters of a secret.
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 8 {
		return "***"
	}
	return "***" + tok[len(tok)-4:]
}

// RedactParams flattens params into a loggable map with secret values masked.
func RedactParams(params url.Values) map[string]string {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v := params.Get(k)
		if _, secret := secretParams[k]; secret {
			v = RedactToken(v)
		}
		out[k] = v
	}
	return out
}
