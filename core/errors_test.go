package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestRegistrarErrorMapperClassifiesPlainErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
	}{
		{
			name:     "provider not registered",
			err:      fmt.Errorf("%w: provider %q is not registered", ErrProviderNotFound, "vipps"),
			category: goerrors.CategoryNotFound,
			textCode: RegistrarErrorProviderNotFound,
		},
		{
			name:     "missing field",
			err:      errors.New("core: provider code is required"),
			category: goerrors.CategoryBadInput,
			textCode: RegistrarErrorBadInput,
		},
		{
			name:     "bad callback",
			err:      errors.New(`core: callback base url "x" is not an absolute url`),
			category: goerrors.CategoryBadInput,
			textCode: RegistrarErrorBadInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := registrarErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("category = %q, want %q", mapped.Category, tc.category)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("text code = %q, want %q", mapped.TextCode, tc.textCode)
			}
			if mapped.Code == 0 {
				t.Fatalf("expected http status to be filled in")
			}
		})
	}
}

func TestRegistrarErrorMapperKeepsRichErrors(t *testing.T) {
	original := goerrors.New("core: unauthorized", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(RegistrarErrorAuthFailed)

	mapped := registrarErrorMapper(original)
	if mapped.TextCode != RegistrarErrorAuthFailed {
		t.Fatalf("expected text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected status preserved, got %d", mapped.Code)
	}
}

func TestEnsureEnvelopeFillsDefaults(t *testing.T) {
	err := ensureRegistrarErrorEnvelope(goerrors.New("boom", goerrors.CategoryExternal))
	if err.Code != http.StatusBadGateway {
		t.Fatalf("external category should map to 502, got %d", err.Code)
	}
	if err.TextCode != RegistrarErrorNetworkFailure {
		t.Fatalf("expected network text code, got %q", err.TextCode)
	}
}

func TestErrorClassifiers(t *testing.T) {
	network := goerrors.New("net down", goerrors.CategoryExternal).WithTextCode(RegistrarErrorNetworkFailure)
	if !IsNetworkError(network) {
		t.Fatalf("expected network classification")
	}
	if IsAuthError(network) || IsRemoteError(network) {
		t.Fatalf("network error misclassified")
	}

	auth := goerrors.New("denied", goerrors.CategoryAuth).WithTextCode(RegistrarErrorAuthFailed)
	if !IsAuthError(auth) {
		t.Fatalf("expected auth classification")
	}

	wrapped := goerrors.Wrap(network, goerrors.CategoryOperation, "register failed").
		WithTextCode(RegistrarErrorRegistrationFailed)
	if !IsRegistrationError(wrapped) {
		t.Fatalf("expected registration classification")
	}

	if IsNetworkError(nil) || IsAuthError(nil) || IsRegistrationError(nil) {
		t.Fatalf("nil must never classify")
	}
}

func TestIsRemoteAbsence(t *testing.T) {
	notFound := goerrors.New("gone", goerrors.CategoryNotFound)
	if !IsRemoteAbsence(notFound) {
		t.Fatalf("category not-found should read as absence")
	}

	status404 := goerrors.New("gone", goerrors.CategoryOperation).WithCode(http.StatusNotFound)
	if !IsRemoteAbsence(status404) {
		t.Fatalf("404 code should read as absence")
	}

	serverError := goerrors.New("boom", goerrors.CategoryOperation).WithCode(http.StatusInternalServerError)
	if IsRemoteAbsence(serverError) {
		t.Fatalf("500 must not read as absence")
	}
	if IsRemoteAbsence(errors.New("plain")) {
		t.Fatalf("plain errors must not read as absence")
	}
}
