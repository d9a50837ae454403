package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrEmptyQueue     = errors.New("queue is empty")
	ErrInvalidPrompt  = errors.New("invalid prompt")
	ErrPromptRejected = errors.New("prompt rejected by content policy")
	ErrNoImageData    = errors.New("no image data in provider response")
)
