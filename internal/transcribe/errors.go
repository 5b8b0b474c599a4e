package transcribe

import "errors"

// ErrEmptyUpload rejects requests that carry no audio bytes.
var ErrEmptyUpload = errors.New("uploaded audio is empty")

// TranscriptionError reports that the speech model failed on an upload. The
// cause is the model's own error.
type TranscriptionError struct {
	Cause error
}

func (e *TranscriptionError) Error() string {
	if e.Cause == nil {
		return "transcription failed"
	}
	return "transcription failed: " + e.Cause.Error()
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// IsTranscriptionFailure reports whether err came from the model call.
func IsTranscriptionFailure(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te)
}
