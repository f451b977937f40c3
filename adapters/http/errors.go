package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// Error kinds reported in <error><kind/></error>.
const (
	kindAuthFailure       = "authentication_failure"
	kindValidationFailure = "validation_failure"
	kindNotFound          = "not_found"
	kindNotSupported      = "not_supported"
	kindBackendError      = "backend_error"
)

// errorStatus maps a service error to an HTTP status and error kind.
func errorStatus(err error) (int, string) {
	var ve *cloud.ValidationError
	switch {
	case errors.Is(err, cloud.ErrAuth):
		return http.StatusUnauthorized, kindAuthFailure
	case errors.As(err, &ve):
		return http.StatusBadRequest, kindValidationFailure
	case errors.Is(err, cloud.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, cloud.ErrUnsupported):
		return http.StatusNotImplemented, kindNotSupported
	default:
		return http.StatusInternalServerError, kindBackendError
	}
}

// writeError renders err as <error status url><kind/><message/><backend/></error>.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorStatus(err)

	code := strconv.Itoa(status)
	var be *cloud.BackendError
	if errors.As(err, &be) && be.Code != "" {
		code = be.Code
	}

	doc := xmldoc.New("error").
		Set("status", strconv.Itoa(status)).
		Set("url", r.URL.String()).
		TextChild("kind", kind).
		TextChild("message", err.Error()).
		Append(xmldoc.New("backend").
			Set("driver", h.service.DriverName()).
			Set("code", code))

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="cloudgate"`)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	h.writeXML(w, status, doc)
}

func (h *Handler) writeXML(w http.ResponseWriter, status int, doc *xmldoc.Element) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if err := doc.Encode(w); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
}
