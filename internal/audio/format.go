package audio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// DefaultExtension is used for staged uploads whose container is unknown.
const DefaultExtension = ".wav"

var knownExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".m4a":  true,
	".mp4":  true,
	".webm": true,
}

type signature struct {
	offset int
	magic  []byte
	ext    string
}

var signatures = []signature{
	{offset: 0, magic: []byte("fLaC"), ext: ".flac"},
	{offset: 0, magic: []byte("OggS"), ext: ".ogg"},
	{offset: 0, magic: []byte("ID3"), ext: ".mp3"},
	{offset: 0, magic: []byte{0x1A, 0x45, 0xDF, 0xA3}, ext: ".webm"},
	{offset: 4, magic: []byte("ftyp"), ext: ".m4a"},
}

// Sniff guesses a container extension from the first bytes of a file. It
// returns "" when nothing matches.
func Sniff(head []byte) string {
	if len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WAVE" {
		return ".wav"
	}

	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(head) >= end && bytes.Equal(head[sig.offset:end], sig.magic) {
			return sig.ext
		}
	}

	// Bare MPEG audio frame sync.
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return ".mp3"
	}
	return ""
}

// StagingExtension picks the suffix for a staged upload: the sniffed
// container wins, since browsers label MediaRecorder output as audio/wav
// whatever it holds, then a recognised client extension, then
// DefaultExtension.
func StagingExtension(filename string, head []byte) string {
	if ext := Sniff(head); ext != "" {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(filename)); knownExtensions[ext] {
		return ext
	}
	return DefaultExtension
}
