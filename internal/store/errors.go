package store

import "errors"

var (
	ErrQueueNotFound          = errors.New("queue not found")
	ErrQueueInactive          = errors.New("queue inactive")
	ErrEntryNotFound          = errors.New("entry not found")
	ErrSessionNotFound        = errors.New("triage session not found")
	ErrNoEntry                = errors.New("no waiting entry")
	ErrInvalidState           = errors.New("invalid entry state")
	ErrNotNextEntry           = errors.New("entry is not next in queue")
	ErrAcuityNotAllowed       = errors.New("acuity level not allowed in queue")
	ErrInvalidAcuity          = errors.New("acuity level out of range")
	ErrInvalidConfidence      = errors.New("confidence score out of range")
	ErrOverrideReasonRequired = errors.New("override reason required")
)
