package http

import (
	"errors"
	"net/http"

	"crm/internal/core"
	"crm/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

// statusFor maps an error to its HTTP status and error type.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, "bad_request"
	}
	kind := core.ErrorKind(err)
	switch kind {
	case log.ErrorTypeValidation:
		return http.StatusUnprocessableEntity, kind
	case log.ErrorTypeNotFound:
		return http.StatusNotFound, kind
	case log.ErrorTypeConflict:
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// writeError renders err as an ErrorBody. Server-side failures are logged and
// their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := statusFor(err)
	body := ErrorBody{Error: err.Error(), Type: kind}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.EntryID = ve.EntryID
	}

	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithErrorType(kind).WithRequestID(requestID(r)))
		body.Error = "internal error"
	}

	NewJSONResponse().Status(status).Data(body).Write(w)
}
