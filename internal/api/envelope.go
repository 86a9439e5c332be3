package api

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in response.Envelope so
// huma operations and plain chi handlers share one wire format.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)

	switch body := v.(type) {
	case response.Envelope, *response.Envelope:
		return v, nil
	case *APIError:
		return response.Envelope{
			Success: false,
			Message: body.Message,
			Code:    body.Code,
			Details: body.Details,
		}, nil
	case *domainerrors.Error:
		return response.Envelope{
			Success: false,
			Message: body.Public(),
			Code:    string(body.Code),
			Details: body.Details,
		}, nil
	case *huma.ErrorModel:
		return response.Envelope{
			Success: false,
			Message: body.Detail,
			Code:    statusToCode(body.Status),
			Details: body.Errors,
		}, nil
	case error:
		message := body.Error()
		if code >= http.StatusInternalServerError {
			message = "internal server error"
		}
		return response.Envelope{
			Success: false,
			Message: message,
			Code:    statusToCode(code),
		}, nil
	}

	return response.Envelope{Success: code < http.StatusBadRequest, Data: v}, nil
}
