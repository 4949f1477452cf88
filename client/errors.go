package client

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-registrar/core"
)

func networkError(cfg core.ProviderConfig, method string, endpoint string, cause error) error {
	return goerrors.Wrap(
		cause,
		goerrors.CategoryExternal,
		fmt.Sprintf("client: %s %s failed", method, redactQuery(endpoint)),
	).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.RegistrarErrorNetworkFailure).
		WithMetadata(map[string]any{
			"provider_code": cfg.ProviderCode,
			"environment":   string(cfg.Environment),
		})
}

func authError(cfg core.ProviderConfig, status int) error {
	return goerrors.New(
		fmt.Sprintf("client: provider %q rejected credentials", cfg.ProviderCode),
		goerrors.CategoryAuth,
	).
		WithCode(status).
		WithTextCode(core.RegistrarErrorAuthFailed).
		WithMetadata(map[string]any{
			"provider_code": cfg.ProviderCode,
			"environment":   string(cfg.Environment),
			"http_status":   status,
		})
}

func remoteError(cfg core.ProviderConfig, status int, message string, body []byte) error {
	category := goerrors.CategoryOperation
	if status == http.StatusNotFound {
		category = goerrors.CategoryNotFound
	}
	err := goerrors.New(message, category).
		WithCode(status).
		WithTextCode(core.RegistrarErrorRemoteFailure)
	metadata := map[string]any{
		"provider_code": cfg.ProviderCode,
		"environment":   string(cfg.Environment),
		"http_status":   status,
	}
	if len(body) > 0 {
		metadata["remote_body"] = strings.TrimSpace(string(body))
	}
	return err.WithMetadata(metadata)
}

func badInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RegistrarErrorBadInput)
}

func internalError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.RegistrarErrorInternal)
}

func redactQuery(endpoint string) string {
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		return endpoint[:idx]
	}
	return endpoint
}
