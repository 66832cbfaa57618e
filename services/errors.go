package services

import "errors"

// Failure taxonomy shared by the conversation and message services. Controllers
// map these onto HTTP status codes; everything below the store boundary is
// wrapped into ErrStorageUnavailable.
var (
	ErrUnauthenticated     = errors.New("no authenticated user")
	ErrUnauthorized        = errors.New("caller is not a participant of this conversation")
	ErrNotFound            = errors.New("conversation not found")
	ErrInvalidParticipants = errors.New("cannot create a conversation with yourself")
	ErrInvalidContent      = errors.New("message content is empty")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)
