package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provider payloads carry the same logical value under different keys depending on
// the product (Instagram Login vs Facebook Login) and API version. Each Decode*
// function below tries the known shapes in a fixed order and reports which key won:
//
//	identity:         user_id -> id -> ig_id
//	object id:        id -> post_id
//	container status: status_code -> status (the latter may read "FINISHED: ..." )
//	token grant:      access_token + expires_in (number or numeric string)
//	scopes:           data.scopes (debug_token) -> data[].permission where status=granted

// ErrFieldMissing is returned when none of the candidate keys are present.
var ErrFieldMissing = errors.New("expected field missing from provider response")

// FlexString unmarshals either a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// Identity is the normalized /me answer.
type Identity struct {
	ID          string
	IDField     string
	Username    string
	Name        string
	AccountType string
}

type identityPayload struct {
	UserID      FlexString `json:"user_id"`
	ID          FlexString `json:"id"`
	IGID        FlexString `json:"ig_id"`
	Username    string     `json:"username"`
	Name        string     `json:"name"`
	AccountType string     `json:"account_type"`
}

func DecodeIdentity(body []byte) (*Identity, error) {
	var p identityPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	out := &Identity{Username: p.Username, Name: p.Name, AccountType: strings.ToUpper(p.AccountType)}
	switch {
	case p.UserID != "":
		out.ID, out.IDField = string(p.UserID), "user_id"
	case p.ID != "":
		out.ID, out.IDField = string(p.ID), "id"
	case p.IGID != "":
		out.ID, out.IDField = string(p.IGID), "ig_id"
	default:
		return nil, fmt.Errorf("decode identity: %w", ErrFieldMissing)
	}
	return out, nil
}

type objectIDPayload struct {
	ID     FlexString `json:"id"`
	PostID FlexString `json:"post_id"`
}

// DecodeObjectID extracts the id of a created container or published object.
func DecodeObjectID(body []byte) (string, error) {
	var p objectIDPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("decode object id: %w", err)
	}
	if p.ID != "" {
		return string(p.ID), nil
	}
	if p.PostID != "" {
		return string(p.PostID), nil
	}
	return "", fmt.Errorf("decode object id: %w", ErrFieldMissing)
}

type containerStatusPayload struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// DecodeContainerStatus returns the upper-cased status token.
func DecodeContainerStatus(body []byte) (string, error) {
	var p containerStatusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("decode container status: %w", err)
	}
	raw := p.StatusCode
	if raw == "" {
		raw = p.Status
	}
	if raw == "" {
		return "", fmt.Errorf("decode container status: %w", ErrFieldMissing)
	}
	if i := strings.IndexAny(raw, ": "); i > 0 {
		raw = raw[:i]
	}
	return strings.ToUpper(strings.TrimSpace(raw)), nil
}

// TokenGrant is a decoded refresh or exchange response.
type TokenGrant struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64 // seconds; zero when the provider did not say
	RefreshToken string
}

type tokenGrantPayload struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    FlexString `json:"expires_in"`
	RefreshToken string     `json:"refresh_token"`
}

func DecodeTokenGrant(body []byte) (*TokenGrant, error) {
	var p tokenGrantPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode token grant: %w", err)
	}
	if p.AccessToken == "" {
		return nil, fmt.Errorf("decode token grant: %w", ErrFieldMissing)
	}
	g := &TokenGrant{AccessToken: p.AccessToken, TokenType: p.TokenType, RefreshToken: p.RefreshToken}
	if p.ExpiresIn != "" {
		n, err := strconv.ParseInt(string(p.ExpiresIn), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode token grant expires_in %q: %w", p.ExpiresIn, err)
		}
		g.ExpiresIn = n
	}
	return g, nil
}

type scopesPayload struct {
	Data json.RawMessage `json:"data"`
}

type debugTokenData struct {
	Scopes  []string `json:"scopes"`
	IsValid *bool    `json:"is_valid"`
}

type permissionEntry struct {
	Permission string `json:"permission"`
	Status     string `json:"status"`
}

// DecodeScopes reads granted scopes from a debug_token or me/permissions response.
func DecodeScopes(body []byte) ([]string, error) {
	var p scopesPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	data := bytes.TrimSpace(p.Data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decode scopes: %w", ErrFieldMissing)
	}
	if data[0] == '{' {
		var d debugTokenData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode scopes: %w", err)
		}
		if d.Scopes == nil {
			return nil, fmt.Errorf("decode scopes: %w", ErrFieldMissing)
		}
		return d.Scopes, nil
	}
	var entries []permissionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Permission != "" && strings.EqualFold(e.Status, "granted") {
			out = append(out, e.Permission)
		}
	}
	return out, nil
}

type quotaPayload struct {
	Data []struct {
		QuotaUsage int `json:"quota_usage"`
		Config     struct {
			QuotaTotal int `json:"quota_total"`
		} `json:"config"`
	} `json:"data"`
}

// DecodePublishQuota reads /{id}/content_publishing_limit; ok is false when the shape is absent.
func DecodePublishQuota(body []byte) (usage, total int, ok bool) {
	var p quotaPayload
	if err := json.Unmarshal(body, &p); err != nil || len(p.Data) == 0 {
		return 0, 0, false
	}
	return p.Data[0].QuotaUsage, p.Data[0].Config.QuotaTotal, true
}
