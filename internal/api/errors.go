package api

import (
	"errors"
	"net/http"

	"lake-ingest/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
// Config errors are checked first since they may wrap a storage NotFoundError.
func httpStatusFromDomainError(err error) int {
	var (
		unavailable *domain.ConfigUnavailableError
		malformed   *domain.ConfigMalformedError
		notFound    *domain.NotFoundError
		validation  *domain.ValidationError
		conflict    *domain.ConflictError
	)

	switch {
	case errors.As(err, &unavailable), errors.As(err, &malformed):
		return http.StatusServiceUnavailable
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
