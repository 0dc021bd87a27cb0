package domain

import "errors"

var (
	ErrRoomNotFound      = errors.New("room-not-found")
	ErrRoomAlreadyExists = errors.New("room-already-exists")
	ErrWordNotFound      = errors.New("word-not-found")
	ErrImageNotFound     = errors.New("image-not-found")
	ErrDuplicateImage    = errors.New("duplicate-image")
	ErrInvalidImageData  = errors.New("invalid-image-data")

	UnexpectedDatabaseError = errors.New("database-error")
)
