// Package services defines the business logic for friendships, direct
// messages, inboxes, secret messages and read cursors. This file centralizes
// the service-level error values so that handlers can map them to HTTP
// results consistently.
package services

import "errors"

// Validation errors.
var (
	// ErrMissingFields is returned when a required identifier is blank.
	ErrMissingFields = errors.New("missing required fields")

	// ErrSelfRequest is returned when a user sends a friend request to themselves.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")

	// ErrEmptyMessage is returned when message or secret text is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when text exceeds the configured rune limit.
	ErrTooLong = errors.New("message too long")
)

// Authorization and lookup errors. Ownership failures are reported as not
// found so callers cannot probe for rows they may not see.
var (
	// ErrRequestNotFound indicates the friend request does not exist or is not
	// addressed to the caller.
	ErrRequestNotFound = errors.New("request not found or unauthorized")

	// ErrUserNotFound indicates no profile matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotFriends indicates the two users have no accepted relationship.
	ErrNotFriends = errors.New("not friends")

	// ErrSecretNotFound indicates the secret does not exist or is not visible
	// to the caller.
	ErrSecretNotFound = errors.New("secret not found")
)

// Conflict errors.
var (
	// ErrRequestExists is returned when a row for the (sender, receiver) pair
	// already exists, whatever its status.
	ErrRequestExists = errors.New("friend request already exists")

	// ErrNotPending is returned when accepting or rejecting a request that was
	// already answered.
	ErrNotPending = errors.New("request is not pending")

	// ErrEmailTaken is returned when a profile claims an email another
	// profile already uses.
	ErrEmailTaken = errors.New("email already in use")
)
