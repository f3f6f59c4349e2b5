package services

import "errors"

// ErrInvalidInput marks request validation failures detected before any I/O.
var ErrInvalidInput = errors.New("invalid input")

// ErrBatchFailed is returned when every file in an upload batch failed.
var ErrBatchFailed = errors.New("all uploads failed")
