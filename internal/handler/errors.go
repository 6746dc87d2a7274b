// Package handler implements the HTTP surface described in spec §6 as
// go-zero/rest handlers, grounded on the teacher's goctl-scaffolded
// handler shape (services/gateway/api/internal/handler/*/*.go): parse
// request, call into a domain collaborator, translate the result to JSON.
// The teacher's handlers delegate to a logic package; this service's
// domain packages (credential, refresh, passkey, upload) already carry
// that control flow, so handlers call them directly instead of
// duplicating a pass-through logic layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pixles/authcore/internal/apierr"
)

// errorBody is the boundary's JSON error envelope (spec §7 names the kinds
// but not a wire shape; this is the one decision this core makes for it).
type errorBody struct {
	Error          string            `json:"error"`
	Detail         string            `json:"detail,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	ExpectedOffset *int64            `json:"expected_offset,omitempty"`
	ActualOffset   *int64            `json:"actual_offset,omitempty"`
}

// writeError maps err to the protocol code spec §6 names and writes the
// JSON envelope. Internal detail is never forwarded (this build always
// behaves like a release build: SafeDetail is called with debug off).
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	body := errorBody{Error: string(apierr.KindOf(err)), Detail: apierr.SafeDetail(err, false)}

	var e *apierr.Error
	if errors.As(err, &e) {
		if e.Kind == apierr.KindBadRequest {
			body.Fields = e.FieldErrors
		}
		if e.Kind == apierr.KindInvalidOffset {
			body.ExpectedOffset = &e.ExpectedOffset
			body.ActualOffset = &e.ActualOffset
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
