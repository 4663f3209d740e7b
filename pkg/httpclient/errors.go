package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

// envelope matches the {data, error} body written by pkg/httputil.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and converts it
// into an AppError when the body follows the standard envelope.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	var env envelope
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, body)
	}

	msg := service + ": " + env.Error.Message
	switch resp.StatusCode {
	case http.StatusNotFound:
		return apperrors.NotFound(service, env.Error.Message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusGone:
		return apperrors.Gone(msg)
	case http.StatusServiceUnavailable:
		return apperrors.Unavailable(msg)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", service, resp.StatusCode, env.Error.Code, env.Error.Message)
	}
	return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: resp.StatusCode}
}

// DecodeData reads a 2xx envelope and unmarshals its data field into dst.
// Non-2xx responses go through ParseResponseError.
func DecodeData(resp *http.Response, service string, dst any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, service)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s response: missing data", service)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s data: %w", service, err)
	}
	return nil
}
