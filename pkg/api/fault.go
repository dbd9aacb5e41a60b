package api

import (
	"errors"
	"net/http"

	"github.com/commy-mesh/commy/pkg/model"
)

// writeFault maps a model.Fault's Kind onto the matching HTTP status and
// writes an RFC 7807 problem response. Errors that aren't a Fault are
// treated as internal.
func writeFault(w http.ResponseWriter, err error) {
	var fault *model.Fault
	if !errors.As(err, &fault) {
		internalError(w, err.Error())
		return
	}

	switch fault.Kind() {
	case model.KindValidation:
		badRequest(w, fault.Error())
	case model.KindAuth:
		unauthorized(w, fault.Error())
	case model.KindNotFound:
		notFound(w, fault.Error())
	case model.KindAlreadyExists:
		conflict(w, fault.Error())
	case model.KindCapacityExceeded, model.KindResourceExhausted:
		writeProblem(w, http.StatusInsufficientStorage, "Insufficient Storage", fault.Error())
	case model.KindIncompatibleFormat, model.KindSchemaConflict, model.KindAbiVersion:
		writeProblem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", fault.Error())
	case model.KindCorrupted, model.KindFatal:
		internalError(w, fault.Error())
	case model.KindTransientNetwork, model.KindCircuitOpen:
		serviceUnavailable(w, fault.Error())
	case model.KindPluginFault:
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", fault.Error())
	default:
		internalError(w, fault.Error())
	}
}
