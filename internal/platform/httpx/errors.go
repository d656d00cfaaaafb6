// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// StatusFor maps a ledger failure kind to an HTTP status code.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindNone:
		return http.StatusOK
	case shared.KindValidation:
		return http.StatusUnprocessableEntity
	case shared.KindPeriodClosed, shared.KindNoOpenPeriod, shared.KindAlreadyClosed,
		shared.KindInvalidState, shared.KindConflict:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeProblem(w, ProblemDetail{
			Type:   typeURI(shared.KindValidation),
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: "request has invalid fields",
			Fields: fields,
		})
		return
	}
	kind := shared.KindOf(err)
	status := StatusFor(kind)
	detail := ""
	if kind != shared.KindInternal {
		detail = err.Error()
	}
	writeProblem(w, ProblemDetail{
		Type:   typeURI(kind),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// BadRequest responds with a 400 problem for malformed payloads.
func BadRequest(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusBadRequest, "Bad Request", detail)
}

func typeURI(kind shared.Kind) string {
	return "urn:odyssey-ledger:problem:" + kind.String()
}
