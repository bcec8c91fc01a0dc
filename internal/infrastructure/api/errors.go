package api

import (
	"context"
	"errors"
	"net/http"

	appservices "github.com/Orelexa/gardrob/internal/application/services"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
)

// statusFor maps a use case error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var te *services.TransformError
	var pe *services.PersistenceError

	switch {
	case errors.Is(err, appservices.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrOperationInProgress):
		return http.StatusConflict, err.Error()
	case errors.As(err, &te):
		switch te.Kind {
		case services.TransformKindContentPolicy:
			return http.StatusUnprocessableEntity, te.Error() + ". Try a clearer photo without logos or revealing content."
		case services.TransformKindQuota:
			return http.StatusServiceUnavailable, "The service is busy right now. Please try again shortly."
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, "Image generation timed out."
		}
		return http.StatusBadGateway, te.Error()
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "Storage is temporarily unavailable."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}
