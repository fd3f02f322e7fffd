package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a transaction lost a race with a concurrent
// write and ran out of retries.
var ErrConflict = errors.New("concurrent modification")

// ErrNotEmpty is returned by SeedSlots when the slot collection already has documents.
var ErrNotEmpty = errors.New("collection is not empty")

// ErrAlreadyExists is returned when writing an append-only record whose key is taken.
var ErrAlreadyExists = errors.New("record already exists")

// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize documents.
var ErrBatchTooLarge = errors.New("batch exceeds maximum size")

// ErrUnknownCollection is returned when exporting a collection that does not exist.
// Collection names are checked against the discovered set, never interpolated blindly.
var ErrUnknownCollection = errors.New("unknown collection")
