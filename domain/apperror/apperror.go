package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"social-publisher/domain/model"
)

// Kind is the failure taxonomy surfaced to callers.
type Kind string

const (
	KindTokenMissing      Kind = "token_missing"
	KindTokenExpired      Kind = "token_expired"
	KindCapability        Kind = "capability_error"
	KindPreflight         Kind = "preflight_error"
	KindTranscode         Kind = "transcode_error"
	KindProviderTransient Kind = "provider_transient"
	KindProviderFatal     Kind = "provider_fatal"
	KindTimeout           Kind = "timeout"
	// KindInternal covers local infrastructure failures, e.g. the credential store being down.
	KindInternal Kind = "internal"
)

// Step is the pipeline stage an error was raised in.
type Step string

const (
	StepToken           Step = "token"
	StepCapabilityCheck Step = "capability_check"
	StepPreflight       Step = "preflight"
	StepTranscode       Step = "transcode"
	StepCreateContainer Step = "create_container"
	StepCheckStatus     Step = "check_status"
	StepPublish         Step = "publish"
)

// ProviderError is the interpreted Graph style error envelope.
type ProviderError struct {
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode,omitempty"`
	Type        string `json:"type,omitempty"`
	Message     string `json:"message"`
	UserTitle   string `json:"error_user_title,omitempty"`
	UserMessage string `json:"error_user_msg,omitempty"`
	IsTransient bool   `json:"is_transient"`
	TraceID     string `json:"fbtrace_id,omitempty"`
	HTTPStatus  int    `json:"http_status"`
}

// RequestShape is the outbound request with secrets redacted.
type RequestShape struct {
	Method string            `json:"method"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

// StructuredError is returned for every terminal failure of a publish or token operation.
type StructuredError struct {
	Kind        Kind               `json:"kind"`
	Step        Step               `json:"step"`
	Message     string             `json:"message"`
	Remediation string             `json:"remediation,omitempty"`
	Provider    *ProviderError     `json:"provider,omitempty"`
	Request     *RequestShape      `json:"request,omitempty"`
	Diagnostics *model.Diagnostics `json:"diagnostics,omitempty"`
	Attempts    int                `json:"attempts,omitempty"`
	// LastStatus is the last observed container status for polling timeouts.
	LastStatus model.ContainerStatus `json:"last_status,omitempty"`
	Err        error                 `json:"-"`
}

func (e *StructuredError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: %s", e.Kind, e.Step, e.Message)
	if e.Provider != nil {
		fmt.Fprintf(&b, " (code=%d", e.Provider.Code)
		if e.Provider.Subcode != 0 {
			fmt.Fprintf(&b, " subcode=%d", e.Provider.Subcode)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StructuredError) Unwrap() error {
	return e.Err
}

// RequiresReauth tags failures the user can only fix by reconnecting the account.
func (e *StructuredError) RequiresReauth() bool {
	switch e.Kind {
	case KindTokenMissing, KindTokenExpired:
		return true
	case KindCapability:
		if cause, ok := As(e.Err); ok {
			return cause.RequiresReauth()
		}
		return false
	}
	return e.Provider != nil && e.Provider.Code == 190 && e.Kind == KindProviderFatal
}

// Retryable reports whether a later attempt could succeed without user action.
func (e *StructuredError) Retryable() bool {
	return e.Kind == KindProviderTransient || e.Kind == KindTimeout
}

// WithStep returns a copy attributed to another pipeline step.
func (e *StructuredError) WithStep(step Step) *StructuredError {
	c := *e
	c.Step = step
	return &c
}

func TokenMissing(ref model.AccountRef) *StructuredError {
	return &StructuredError{
		Kind:        KindTokenMissing,
		Step:        StepToken,
		Message:     fmt.Sprintf("no %s credentials connected for user %s", ref.Platform, ref.UserID),
		Remediation: "Connect your account to continue.",
	}
}

func TokenExpired(ref model.AccountRef, err error) *StructuredError {
	return &StructuredError{
		Kind:        KindTokenExpired,
		Step:        StepToken,
		Message:     fmt.Sprintf("%s token for user %s is expired and cannot be refreshed", ref.Platform, ref.UserID),
		Remediation: "Reconnect your account.",
		Err:         err,
	}
}

func Capability(message, remediation string, diag *model.Diagnostics) *StructuredError {
	return &StructuredError{
		Kind:        KindCapability,
		Step:        StepCapabilityCheck,
		Message:     message,
		Remediation: remediation,
		Diagnostics: diag,
	}
}

// CapabilityFrom wraps a failed provider call made during the capability check.
// The provider envelope and request shape are kept; the failure is never retryable.
func CapabilityFrom(cause *StructuredError, remediation string, diag *model.Diagnostics) *StructuredError {
	return &StructuredError{
		Kind:        KindCapability,
		Step:        StepCapabilityCheck,
		Message:     cause.Message,
		Remediation: remediation,
		Provider:    cause.Provider,
		Request:     cause.Request,
		Diagnostics: diag,
		Attempts:    cause.Attempts,
		Err:         cause,
	}
}

func Preflight(message, remediation string) *StructuredError {
	return &StructuredError{Kind: KindPreflight, Step: StepPreflight, Message: message, Remediation: remediation}
}

func Transcode(message string, err error) *StructuredError {
	return &StructuredError{
		Kind:        KindTranscode,
		Step:        StepTranscode,
		Message:     message,
		Remediation: "Upload the media as a JPEG image and try again.",
		Err:         err,
	}
}

func Internal(step Step, message string, err error) *StructuredError {
	return &StructuredError{Kind: KindInternal, Step: step, Message: message, Err: err}
}

func Fatal(step Step, message string) *StructuredError {
	return &StructuredError{Kind: KindProviderFatal, Step: step, Message: message}
}

// PollTimeout is returned when a container did not finish within the polling budget.
func PollTimeout(containerID string, last model.ContainerStatus) *StructuredError {
	return &StructuredError{
		Kind:        KindTimeout,
		Step:        StepCheckStatus,
		Message:     fmt.Sprintf("container %s still %s after polling budget", containerID, last),
		Remediation: "The media is still processing. Resume publishing later with the container id.",
		LastStatus:  last,
	}
}

// As extracts a StructuredError from an error chain.
func As(err error) (*StructuredError, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err carries a StructuredError of the given kind.
func IsKind(err error, kind Kind) bool {
	se, ok := As(err)
	return ok && se.Kind == kind
}

// IsPollTimeout reports whether err is a container that was still processing when
// status polling stopped. Only these runs can be resumed from their container id.
func IsPollTimeout(err error) bool {
	se, ok := As(err)
	return ok && se.Kind == KindTimeout && se.Step == StepCheckStatus
}

// HTTPStatus maps an error to the status code API routes answer with.
func HTTPStatus(err error) int {
	se, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if se.RequiresReauth() {
		return http.StatusUnauthorized
	}
	switch se.Kind {
	case KindCapability:
		return http.StatusForbidden
	case KindPreflight, KindTranscode:
		return http.StatusUnprocessableEntity
	case KindProviderTransient:
		return http.StatusServiceUnavailable
	case KindTimeout:
		if IsPollTimeout(se) {
			return http.StatusAccepted
		}
		return http.StatusServiceUnavailable
	case KindProviderFatal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
