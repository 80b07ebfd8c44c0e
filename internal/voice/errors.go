package voice

import (
	"errors"
	"fmt"
)

// Kind classifies a capture failure.
type Kind string

const (
	// KindDeviceUnavailable means the microphone could not be acquired or
	// produced no audio.
	KindDeviceUnavailable Kind = "device_unavailable"
	// KindNoSpeech means nothing intelligible was heard.
	KindNoSpeech Kind = "no_speech"
	// KindServiceUnreachable means the transcription service call failed.
	KindServiceUnreachable Kind = "service_unreachable"
)

// Error is a classified capture failure. Captures are never retried.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("voice %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text shown to the operator.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindDeviceUnavailable:
		return fmt.Sprintf("Error accessing microphone: %v", e.Err)
	case KindNoSpeech:
		return "Could not understand audio. Please speak clearly and try again."
	case KindServiceUnreachable:
		return fmt.Sprintf("Could not request results from speech recognition service; %v", e.Err)
	default:
		return e.Error()
	}
}

// Tips returns troubleshooting steps for the operator, if any.
func (e *Error) Tips() []string {
	if e.Kind != KindDeviceUnavailable {
		return nil
	}
	return []string{
		"Make sure your microphone is properly connected",
		"Check that no other application is using the microphone",
		"Try refreshing the page",
		"Ensure the server has permission to access the microphone",
	}
}

// KindOf returns the Kind of a voice error in err's chain, or "".
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

func deviceErr(err error) error   { return &Error{Kind: KindDeviceUnavailable, Err: err} }
func noSpeechErr(err error) error { return &Error{Kind: KindNoSpeech, Err: err} }
func serviceErr(err error) error  { return &Error{Kind: KindServiceUnreachable, Err: err} }
