package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so transports can tell bad input from internal faults.
type Kind string

const (
	KindUnsupportedFormat    Kind = "UNSUPPORTED_FORMAT"
	KindEmptyDocument        Kind = "EMPTY_DOCUMENT"
	KindNoExtractableText    Kind = "NO_EXTRACTABLE_TEXT"
	KindInvalidChunkConfig   Kind = "INVALID_CHUNK_CONFIG"
	KindEmbeddingError       Kind = "EMBEDDING_ERROR"
	KindInvalidQuery         Kind = "INVALID_QUERY"
	KindSessionNotFound      Kind = "SESSION_NOT_FOUND"
	KindModelGenerationError Kind = "MODEL_GENERATION_ERROR"
	KindInvalidRequest       Kind = "INVALID_REQUEST"
	KindInternal             Kind = "INTERNAL"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrUnsupportedFormat  = &Error{Kind: KindUnsupportedFormat}
	ErrEmptyDocument      = &Error{Kind: KindEmptyDocument}
	ErrNoExtractableText  = &Error{Kind: KindNoExtractableText}
	ErrInvalidChunkConfig = &Error{Kind: KindInvalidChunkConfig}
	ErrEmbedding          = &Error{Kind: KindEmbeddingError}
	ErrInvalidQuery       = &Error{Kind: KindInvalidQuery}
	ErrSessionNotFound    = &Error{Kind: KindSessionNotFound}
	ErrModelGeneration    = &Error{Kind: KindModelGenerationError}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Error is the structured error carried across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the status code used by the REST layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindEmptyDocument, KindNoExtractableText, KindInvalidChunkConfig, KindInvalidQuery, KindInvalidRequest:
		return http.StatusBadRequest
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindEmbeddingError, KindModelGenerationError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the failure was caused by the caller's input.
func IsClientError(err error) bool {
	status := HTTPStatus(KindOf(err))
	return status >= 400 && status < 500
}
