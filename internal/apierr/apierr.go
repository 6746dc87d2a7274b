// Package apierr defines the closed error taxonomy the core surfaces at its
// boundary (spec §4.10, §7). Every component returns one of these kinds
// instead of a bare error; infrastructure failures collapse into Internal.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed enum of error categories. New kinds require touching
// this file and the HTTPStatus table together.
type Kind string

const (
	// Credential (C5)
	KindUserAlreadyExists Kind = "user_already_exists"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindBadRequest        Kind = "bad_request"
	KindInternal          Kind = "internal"

	// Claim validation (C1, C11)
	KindTokenMissing           Kind = "token_missing"
	KindTokenInvalid           Kind = "token_invalid"
	KindTokenExpired           Kind = "token_expired"
	KindUnexpectedHeaderFormat Kind = "unexpected_header_format"
	KindInvalidScopes          Kind = "invalid_scopes"

	// TOTP (C3)
	KindUserNotFound       Kind = "user_not_found"
	KindAlreadyEnabled     Kind = "already_enabled"
	KindNotEnabled         Kind = "not_enabled"
	KindInvalidCode        Kind = "invalid_code"
	KindMaxAttemptsExceeded Kind = "max_attempts_exceeded"

	// Passkey (C7)
	KindRegistrationFailed Kind = "registration_failed"
	KindInvalidCredential  Kind = "invalid_credential"
	KindLimitReached       Kind = "limit_reached"

	// Upload (C8, C9)
	KindForbidden              Kind = "forbidden"
	KindFileTooLarge           Kind = "file_too_large"
	KindSessionNotFound        Kind = "session_not_found"
	KindUploadComplete         Kind = "upload_complete"
	KindUploadInstanceConflict Kind = "upload_instance_conflict"
	KindInvalidOffset          Kind = "invalid_offset"
	KindInvalidUpload          Kind = "invalid_upload"
	KindInvalidChunkSize       Kind = "invalid_chunk_size"
	KindChecksumMismatch       Kind = "checksum_mismatch"
	KindProcessingError        Kind = "processing_error"
)

// Error is the single concrete error type every component returns. Detail
// carries free-form context; in release builds handlers must not forward it
// verbatim for KindInternal (see SafeDetail).
type Error struct {
	Kind   Kind
	Detail string

	// FieldErrors is populated for KindBadRequest.
	FieldErrors map[string]string

	// ExpectedOffset/ActualOffset populate KindInvalidOffset.
	ExpectedOffset, ActualOffset int64

	// ExpectedHash/ActualHash populate KindChecksumMismatch.
	ExpectedHash, ActualHash uint64

	cause error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, New(KindX, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Detail == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Detail == e.Detail
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, cause)
}

func BadRequest(fields map[string]string) *Error {
	return &Error{Kind: KindBadRequest, FieldErrors: fields}
}

func InvalidOffset(expected, actual int64) *Error {
	return &Error{
		Kind:            KindInvalidOffset,
		Detail:          fmt.Sprintf("expected offset %d, got %d", expected, actual),
		ExpectedOffset:  expected,
		ActualOffset:    actual,
	}
}

func ChecksumMismatch(expected, actual uint64) *Error {
	return &Error{
		Kind:         KindChecksumMismatch,
		Detail:       fmt.Sprintf("expected hash %x, got %x", expected, actual),
		ExpectedHash: expected,
		ActualHash:   actual,
	}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for anything
// that isn't one of our own Error values — this is the point at which
// infrastructure errors (KV, DB, filesystem) collapse per spec §7.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the protocol code from spec §6.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest, KindInvalidCode, KindInvalidUpload, KindInvalidChunkSize:
		return http.StatusBadRequest
	case KindUserAlreadyExists:
		return http.StatusConflict
	case KindInvalidCredentials, KindTokenMissing, KindTokenInvalid, KindTokenExpired,
		KindUnexpectedHeaderFormat, KindInvalidScopes:
		return http.StatusUnauthorized
	case KindUserNotFound, KindSessionNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindAlreadyEnabled, KindUploadComplete, KindUploadInstanceConflict, KindChecksumMismatch, KindInvalidOffset:
		return http.StatusConflict
	case KindNotEnabled:
		return http.StatusBadRequest
	case KindMaxAttemptsExceeded:
		return http.StatusTooManyRequests
	case KindRegistrationFailed, KindInvalidCredential:
		return http.StatusBadRequest
	case KindLimitReached:
		return http.StatusConflict
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindProcessingError:
		return http.StatusUnprocessableEntity
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// SafeDetail returns Detail unless this is an Internal error in a release
// build, in which case it returns a constant string. debugBuild is passed
// in by the handler layer so tests can exercise both branches.
func SafeDetail(err error, debugBuild bool) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Kind == KindInternal && !debugBuild {
		return "internal error"
	}
	return e.Detail
}
