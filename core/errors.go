package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	HooksErrorBadInput             = "HOOKS_BAD_INPUT"
	HooksErrorSubscriptionNotFound = "HOOKS_SUBSCRIPTION_NOT_FOUND"
	HooksErrorDeliveryFailed       = "HOOKS_DELIVERY_FAILED"
	HooksErrorUnavailable          = "HOOKS_UNAVAILABLE"
	HooksErrorInternal             = "HOOKS_INTERNAL_ERROR"
)

var (
	ErrSubscriptionNotFound = errors.New("core: subscription not found")
	ErrEngineClosed         = errors.New("core: delivery engine is closed")
)

// MapError converts any error into a go-errors envelope with a stable text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureHooksErrorEnvelope(richErr)
	}
	if errors.Is(err, ErrSubscriptionNotFound) {
		return newHooksError(err.Error(), goerrors.CategoryNotFound, HooksErrorSubscriptionNotFound)
	}
	if errors.Is(err, ErrEngineClosed) {
		return newHooksError(err.Error(), goerrors.CategoryOperation, HooksErrorUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newHooksError(err.Error(), goerrors.CategoryNotFound, HooksErrorSubscriptionNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown event"):
		return newHooksError(err.Error(), goerrors.CategoryBadInput, HooksErrorBadInput)
	case strings.Contains(msg, "status "), strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"):
		return newHooksError(err.Error(), goerrors.CategoryExternal, HooksErrorDeliveryFailed)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureHooksErrorEnvelope(mapped)
}

// NotFoundError wraps ErrSubscriptionNotFound with the missing id.
func NotFoundError(id string) error {
	err := goerrors.Wrap(ErrSubscriptionNotFound, goerrors.CategoryNotFound, "core: subscription not found").
		WithCode(http.StatusNotFound).
		WithTextCode(HooksErrorSubscriptionNotFound)
	err.WithMetadata(map[string]any{"subscription_id": strings.TrimSpace(id)})
	return err
}

func newHooksError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureHooksErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureHooksErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = hooksHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultHooksTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultHooksTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return HooksErrorBadInput
	case goerrors.CategoryNotFound:
		return HooksErrorSubscriptionNotFound
	case goerrors.CategoryExternal:
		return HooksErrorDeliveryFailed
	case goerrors.CategoryOperation:
		return HooksErrorUnavailable
	default:
		return HooksErrorInternal
	}
}

func hooksHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WrapError builds an envelope around source, which may be nil. The HTTP
// code and text code follow category.
func WrapError(source error, category goerrors.Category, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err.WithCode(hooksHTTPStatus(category)).WithTextCode(defaultHooksTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// DependencyError reports a handler built without a collaborator it needs.
func DependencyError(message string) error {
	return WrapError(nil, goerrors.CategoryInternal, message, nil)
}

func BadInputError(message string) error {
	return WrapError(nil, goerrors.CategoryBadInput, message, nil)
}

// FieldError is a validation envelope for one offending field. scope
// prefixes the message, e.g. "command".
func FieldError(scope, field, message string) error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(HooksErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
