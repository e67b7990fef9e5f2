package apperrors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrNoMatches             = errors.New("no matching metadata found for the query")
	ErrUnsupportedDatasource = errors.New("unsupported datasource type")
	ErrRegistryClosed        = errors.New("engine registry is closed")
	ErrIndexClosed           = errors.New("vector index is closed")
)
