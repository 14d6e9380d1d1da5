package persistence

import "errors"

// ErrNotFound reports that a row is absent, soft-deleted, or belongs to a
// different tenant. The three cases are deliberately indistinguishable so the
// error shape never leaks cross-tenant existence information.
var ErrNotFound = errors.New("record not found")

// ErrConflict reports a uniqueness violation (duplicate slug, email,
// membership, or pending invitation).
var ErrConflict = errors.New("record conflict")

// ErrInvalidInvitation reports that an invitation token is missing, expired,
// or already accepted. The cases are merged for the same anti-enumeration
// reason as ErrNotFound.
var ErrInvalidInvitation = errors.New("invalid or expired invitation")
