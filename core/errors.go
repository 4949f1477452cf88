package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RegistrarErrorBadInput             = "REGISTRAR_BAD_INPUT"
	RegistrarErrorProviderNotFound     = "REGISTRAR_PROVIDER_NOT_FOUND"
	RegistrarErrorAuthFailed           = "REGISTRAR_AUTH_FAILED"
	RegistrarErrorNetworkFailure       = "REGISTRAR_NETWORK_FAILURE"
	RegistrarErrorRemoteFailure        = "REGISTRAR_REMOTE_FAILURE"
	RegistrarErrorRegistrationFailed   = "REGISTRAR_REGISTRATION_FAILED"
	RegistrarErrorDeregistrationFailed = "REGISTRAR_DEREGISTRATION_FAILED"
	RegistrarErrorLocked               = "REGISTRAR_LOCKED"
	RegistrarErrorInternal             = "REGISTRAR_INTERNAL_ERROR"
)

func registrarErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRegistrarErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newRegistrarError(err.Error(), goerrors.CategoryNotFound, RegistrarErrorProviderNotFound)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "registration lock"):
		return newRegistrarError(err.Error(), goerrors.CategoryConflict, RegistrarErrorLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "not an absolute url"):
		return newRegistrarError(err.Error(), goerrors.CategoryBadInput, RegistrarErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRegistrarErrorEnvelope(mapped)
}

func newRegistrarError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRegistrarErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRegistrarErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = registrarHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRegistrarTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRegistrarTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RegistrarErrorBadInput
	case goerrors.CategoryNotFound:
		return RegistrarErrorProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return RegistrarErrorAuthFailed
	case goerrors.CategoryConflict:
		return RegistrarErrorLocked
	case goerrors.CategoryExternal:
		return RegistrarErrorNetworkFailure
	case goerrors.CategoryOperation:
		return RegistrarErrorRemoteFailure
	default:
		return RegistrarErrorInternal
	}
}

func registrarHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsAuthError reports whether err came back from the remote API as a
// credential rejection. Auth failures are never auto-retried.
func IsAuthError(err error) bool {
	return errorHasTextCode(err, RegistrarErrorAuthFailed)
}

// IsNetworkError reports whether err is a transport or timeout failure, the
// one error kind the client retries once.
func IsNetworkError(err error) bool {
	return errorHasTextCode(err, RegistrarErrorNetworkFailure)
}

// IsRemoteError reports whether err is a non-2xx remote response carrying
// the provider's error body.
func IsRemoteError(err error) bool {
	return errorHasTextCode(err, RegistrarErrorRemoteFailure)
}

// IsRegistrationError reports whether err is the operation-level wrapper
// returned by Register around an underlying client failure.
func IsRegistrationError(err error) bool {
	return errorHasTextCode(err, RegistrarErrorRegistrationFailed)
}

// IsDeregistrationError reports whether err is the operation-level wrapper
// returned by Deregister.
func IsDeregistrationError(err error) bool {
	return errorHasTextCode(err, RegistrarErrorDeregistrationFailed)
}

// IsRemoteAbsence reports whether err is the remote service answering that
// the addressed subscription does not exist. Deregister treats this as
// success rather than failure.
func IsRemoteAbsence(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	if richErr.Category == goerrors.CategoryNotFound {
		return true
	}
	return richErr.Code == http.StatusNotFound
}

func errorHasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}
