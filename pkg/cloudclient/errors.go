package cloudclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// Sentinel errors.
var (
	// ErrNotFound matches (via errors.Is) any BackendFailure with status 404.
	ErrNotFound = errors.New("resource not found")

	// ErrUnknownRelation is returned when no accessor exists for a relation name.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrUnknownAction is returned when invoking an action the resource does not offer.
	ErrUnknownAction = errors.New("action not available")

	// ErrUnknownOperation is returned when a collection does not document an operation.
	ErrUnknownOperation = errors.New("operation not documented")

	// ErrMalformedDocument is returned when a 2xx response is not the expected document.
	ErrMalformedDocument = errors.New("malformed document")
)

// Cause tokens reported by the server in <error><kind/></error>.
const (
	CauseValidationFailure = "validation_failure"
	CauseNotFound          = "not_found"
	CauseBackendError      = "backend_error"
	CauseInvalidEntryPoint = "invalid_entry_point"
)

// AuthFailure is a credential rejection (HTTP 401).
type AuthFailure struct {
	URL     string
	Message string
}

func (e *AuthFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed for %s", e.URL)
	}
	return fmt.Sprintf("authentication failed for %s: %s", e.URL, e.Message)
}

// BackendFailure is any other non-2xx response, or a network failure
// (StatusCode 0, Cause empty, Err set).
type BackendFailure struct {
	URL        string
	StatusCode int
	Cause      string
	Message    string
	Details    map[string]string
	Err        error
}

func (e *BackendFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
	}
	msg := fmt.Sprintf("backend error %d", e.StatusCode)
	if e.Cause != "" {
		msg += " (" + e.Cause + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else {
		msg += ": " + statusText(e.StatusCode)
	}
	return msg
}

func (e *BackendFailure) Unwrap() error {
	return e.Err
}

// Is reports 404 failures as ErrNotFound.
func (e *BackendFailure) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ValidationFailure is a request rejected by server-side precondition checks.
type ValidationFailure struct {
	URL     string
	Message string
	Details map[string]string
}

func (e *ValidationFailure) Error() string {
	return "validation failed: " + e.Message
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthFailure returns true if the error is a credential rejection.
func IsAuthFailure(err error) bool {
	var af *AuthFailure
	return errors.As(err, &af)
}

// IsValidationFailure returns true if the server rejected the request parameters.
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

// errorFromResponse maps a non-2xx response to the error taxonomy.
// The body is read as an <error> document when it is one.
func errorFromResponse(status int, url string, body []byte) error {
	var (
		cause   string
		message string
		details map[string]string
	)

	if doc, err := xmldoc.ParseBytes(body); err == nil && doc.Name == "error" {
		cause = doc.Child("kind").TextTrimmed()
		message = doc.Child("message").TextTrimmed()
		details = errorDetails(doc)
	} else {
		message = strings.TrimSpace(string(body))
		if len(message) > 512 {
			message = message[:512] + "..."
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return &AuthFailure{URL: url, Message: message}
	case status == http.StatusBadRequest && cause == CauseValidationFailure:
		return &ValidationFailure{URL: url, Message: message, Details: details}
	}
	return &BackendFailure{
		URL:        url,
		StatusCode: status,
		Cause:      cause,
		Message:    message,
		Details:    details,
	}
}

// errorDetails flattens the extra children of an <error> document:
// <backend driver="mock" code="500"/> becomes backend.driver and backend.code.
func errorDetails(doc *xmldoc.Element) map[string]string {
	out := make(map[string]string)
	for _, a := range doc.Attrs {
		out[a.Name] = a.Value
	}
	for _, c := range doc.Children {
		if c.Name == "kind" || c.Name == "message" {
			continue
		}
		if text := c.TextTrimmed(); text != "" {
			out[c.Name] = text
		}
		for _, a := range c.Attrs {
			out[c.Name+"."+a.Name] = a.Value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DetailKeys returns the detail keys in sorted order.
func (e *BackendFailure) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
