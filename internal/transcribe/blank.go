package transcribe

import "strings"

// blankAudioToken is what whisper.cpp prints for audio with no speech.
const blankAudioToken = "[BLANK_AUDIO]"

// IsBlank reports whether a transcript carries no recognised speech.
func IsBlank(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	return trimmed == "" || strings.EqualFold(trimmed, blankAudioToken)
}
