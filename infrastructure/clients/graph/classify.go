package graph

import (
	"encoding/json"
	"net/http"
	"net/url"

	"social-publisher/domain/apperror"
	"social-publisher/infrastructure/utils"
)

// Graph API error codes the client reacts to.
const (
	CodeUnknown               = 1
	CodeGenericOAuthException = 2
	CodeTooManyCalls          = 4
	CodeUserRequestLimit      = 17
	CodePageRequestLimit      = 32
	CodeAppLimit              = 341
	CodeRateLimit             = 613
	CodePermissionDenied      = 10
	CodeInvalidParameter      = 100
	CodePermissionError       = 200
	CodeInvalidToken          = 190
	CodeMediaFetchFailed      = 9004

	// SubcodeInvalidSession marks a 190 that is a genuinely dead token, not a hiccup.
	SubcodeInvalidSession = 467

	SubcodeVideoFormat       = 2207026
	SubcodeDailyLimitReached = 2207042
	SubcodeMediaFetchTimeout = 2207052
)

var transientCodes = map[int]struct{}{
	CodeUnknown:               {},
	CodeGenericOAuthException: {},
	CodeTooManyCalls:          {},
	CodeUserRequestLimit:      {},
	CodePageRequestLimit:      {},
	CodeAppLimit:              {},
	CodeRateLimit:             {},
}

// IsTransient decides retryability from the code, subcode and HTTP status only.
// The provider's own is_transient flag is kept as metadata.
func IsTransient(code, subcode, httpStatus int) bool {
	if _, ok := transientCodes[code]; ok {
		return true
	}
	if code == CodeInvalidToken && subcode != SubcodeInvalidSession {
		return true
	}
	return httpStatus >= http.StatusInternalServerError
}

func isRateLimit(code int) bool {
	switch code {
	case CodeTooManyCalls, CodeUserRequestLimit, CodePageRequestLimit, CodeAppLimit, CodeRateLimit:
		return true
	}
	return false
}

type errorEnvelope struct {
	Error *struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// parseProviderError returns nil when a 2xx body carries no error envelope.
func parseProviderError(status int, body []byte) *apperror.ProviderError {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	if env.Error != nil && (env.Error.Code != 0 || env.Error.Message != "") {
		return &apperror.ProviderError{
			Code:        env.Error.Code,
			Subcode:     env.Error.ErrorSubcode,
			Type:        env.Error.Type,
			Message:     env.Error.Message,
			UserTitle:   env.Error.ErrorUserTitle,
			UserMessage: env.Error.ErrorUserMsg,
			IsTransient: env.Error.IsTransient,
			TraceID:     env.Error.FbtraceID,
			HTTPStatus:  status,
		}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	return &apperror.ProviderError{
		Message:    http.StatusText(status),
		HTTPStatus: status,
	}
}

func requestShape(method string, u *url.URL, params url.Values) *apperror.RequestShape {
	return &apperror.RequestShape{
		Method: method,
		Host:   u.Host,
		Path:   u.Path,
		Params: utils.RedactParams(params),
	}
}

// classify turns a provider error into the error surfaced by the client.
func classify(step apperror.Step, pe *apperror.ProviderError, shape *apperror.RequestShape, params url.Values) *apperror.StructuredError {
	kind := apperror.KindProviderFatal
	if IsTransient(pe.Code, pe.Subcode, pe.HTTPStatus) {
		kind = apperror.KindProviderTransient
	}
	msg := pe.Message
	if pe.UserMessage != "" {
		msg = pe.UserMessage
	}
	if msg == "" {
		msg = "provider returned an error"
	}
	return &apperror.StructuredError{
		Kind:        kind,
		Step:        step,
		Message:     msg,
		Remediation: remediation(pe, params),
		Provider:    pe,
		Request:     shape,
	}
}
