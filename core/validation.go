package core

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// NormalizeSubscriptionInput trims the input and fills default timeout and retry policy.
func NormalizeSubscriptionInput(in CreateSubscriptionInput) CreateSubscriptionInput {
	out := in
	out.Name = strings.TrimSpace(in.Name)
	out.Description = strings.TrimSpace(in.Description)
	out.URL = strings.TrimSpace(in.URL)
	out.Secret = strings.TrimSpace(in.Secret)
	if out.Timeout <= 0 {
		out.Timeout = DefaultSubscriptionTimeout
	}
	if in.RetryPolicy == nil {
		policy := DefaultRetryPolicy()
		out.RetryPolicy = &policy
	} else {
		policy := *in.RetryPolicy
		if policy.InitialDelay <= 0 {
			policy.InitialDelay = DefaultInitialDelay
		}
		if policy.BackoffMultiplier <= 0 {
			policy.BackoffMultiplier = DefaultBackoffMultiplier
		}
		out.RetryPolicy = &policy
	}

	events := make([]string, 0, len(in.Events))
	seen := map[string]struct{}{}
	for _, event := range in.Events {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		if _, ok := seen[event]; ok {
			continue
		}
		seen[event] = struct{}{}
		events = append(events, event)
	}
	out.Events = events

	if len(in.Headers) > 0 {
		out.Headers = make(map[string]string, len(in.Headers))
		for key, value := range in.Headers {
			out.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	out.Filter = normalizeFilter(in.Filter)
	return out
}

// ValidateSubscriptionInput rejects configuration errors at registration time.
func ValidateSubscriptionInput(in CreateSubscriptionInput) error {
	var fields []goerrors.FieldError

	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, goerrors.FieldError{Field: "name", Message: "name is required"})
	}
	if msg := validateTargetURL(in.URL); msg != "" {
		fields = append(fields, goerrors.FieldError{Field: "url", Message: msg})
	}
	if len(in.Events) == 0 {
		fields = append(fields, goerrors.FieldError{Field: "events", Message: "at least one event is required"})
	}
	for _, event := range in.Events {
		if !KnownEvent(event) {
			fields = append(fields, goerrors.FieldError{
				Field:   "events",
				Message: fmt.Sprintf("unknown event %q", strings.TrimSpace(event)),
			})
		}
	}
	if in.RetryPolicy != nil {
		if in.RetryPolicy.MaxRetries < 0 {
			fields = append(fields, goerrors.FieldError{Field: "retry_policy.max_retries", Message: "must be >= 0"})
		}
		if in.RetryPolicy.InitialDelay < 0 {
			fields = append(fields, goerrors.FieldError{Field: "retry_policy.initial_delay", Message: "must be >= 0"})
		}
		if in.RetryPolicy.BackoffMultiplier < 0 {
			fields = append(fields, goerrors.FieldError{Field: "retry_policy.backoff_multiplier", Message: "must be >= 0"})
		}
	}
	if in.Timeout < 0 || in.Timeout > 5*time.Minute {
		fields = append(fields, goerrors.FieldError{Field: "timeout", Message: "must be between 0 and 5m"})
	}
	if in.RateLimit < 0 {
		fields = append(fields, goerrors.FieldError{Field: "rate_limit", Message: "must be >= 0"})
	}
	seenHeaders := map[string]struct{}{}
	for key := range in.Headers {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(key))
		if canonical == "" {
			fields = append(fields, goerrors.FieldError{Field: "headers", Message: "header name is required"})
			continue
		}
		if _, dup := seenHeaders[canonical]; dup {
			fields = append(fields, goerrors.FieldError{
				Field:   "headers",
				Message: fmt.Sprintf("duplicate header %q", canonical),
			})
			continue
		}
		seenHeaders[canonical] = struct{}{}
	}

	if len(fields) == 0 {
		return nil
	}
	return goerrors.NewValidation("core: invalid subscription", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(HooksErrorBadInput)
}

func validateTargetURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "url is required"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "url is invalid"
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return "url must use https"
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "url host is required"
	}
	return ""
}

func normalizeFilter(filter Filter) Filter {
	out := Filter{
		ResourceIDs: trimValues(filter.ResourceIDs),
		Departments: trimValues(filter.Departments),
		Locations:   trimValues(filter.Locations),
	}
	if len(filter.Conditions) > 0 {
		out.Conditions = make(map[string]any, len(filter.Conditions))
		for path, expected := range filter.Conditions {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			out.Conditions[path] = expected
		}
	}
	return out
}

func trimValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
