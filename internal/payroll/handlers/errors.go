package handlers

import (
	"errors"
	"net/http"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"google.golang.org/grpc/codes"
)

var (
	notFoundErrors = []error{
		e.ErrNotFound,
		e.ErrCompanyNotFound,
		e.ErrEmployeeNotFound,
		e.ErrTokenAccountNotFound,
	}
	alreadyExistsErrors = []error{
		e.ErrAlreadyExists,
		e.ErrCompanyAlreadyExists,
		e.ErrEmployeeAlreadyExists,
		e.ErrPaymentAlreadyProcessed,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusOf maps a service error to its gRPC code and HTTP status.
func statusOf(err error) (codes.Code, int) {
	switch {
	case isAny(err, notFoundErrors):
		return codes.NotFound, http.StatusNotFound
	case isAny(err, alreadyExistsErrors):
		return codes.AlreadyExists, http.StatusConflict
	}
	switch e.KindOf(err) {
	case e.KindAuthorization:
		return codes.PermissionDenied, http.StatusForbidden
	case e.KindState:
		return codes.FailedPrecondition, http.StatusConflict
	case e.KindValidation:
		return codes.InvalidArgument, http.StatusBadRequest
	case e.KindArithmetic:
		return codes.OutOfRange, http.StatusUnprocessableEntity
	case e.KindFunds:
		return codes.FailedPrecondition, http.StatusPaymentRequired
	case e.KindExternal:
		return codes.Unavailable, http.StatusBadGateway
	case e.KindConflict:
		return codes.Aborted, http.StatusConflict
	default:
		return codes.Internal, http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error payload of the HTTP API.
type ErrorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Retry   string `json:"retry"`
	Message string `json:"message"`
}

func errorBody(err error) ErrorBody {
	kind := e.KindOf(err)
	code := e.CodeOf(err)
	if kind == e.KindInternal {
		switch {
		case isAny(err, notFoundErrors):
			code = "NotFound"
		case isAny(err, alreadyExistsErrors):
			code = "AlreadyExists"
		}
	}
	return ErrorBody{
		Error:   code,
		Kind:    kind.String(),
		Retry:   kind.Retry(),
		Message: err.Error(),
	}
}
