package utils

import "errors"

// ErrorRecordNotFound is the recoverable not-found signal shared across the
// storage and CMS boundaries. Callers that see it skip the record and move on.
var ErrorRecordNotFound = errors.New("record not found")
