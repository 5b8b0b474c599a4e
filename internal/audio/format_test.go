package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		head []byte
		want string
	}{
		{name: "wav", head: makePCM16WAV(nil, 16000, 1), want: ".wav"},
		{name: "flac", head: []byte("fLaC\x00\x00\x00\x22"), want: ".flac"},
		{name: "ogg", head: []byte("OggS\x00\x02"), want: ".ogg"},
		{name: "mp3 with id3", head: []byte("ID3\x04\x00"), want: ".mp3"},
		{name: "mp3 frame sync", head: []byte{0xFF, 0xFB, 0x90, 0x64}, want: ".mp3"},
		{name: "m4a", head: []byte("\x00\x00\x00\x20ftypM4A "), want: ".m4a"},
		{name: "webm", head: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F}, want: ".webm"},
		{name: "plain text", head: []byte("just some words"), want: ""},
		{name: "empty", head: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Sniff(tt.head))
		})
	}
}

func TestStagingExtension(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".mp3", StagingExtension("chant.MP3", nil))
	require.Equal(t, ".flac", StagingExtension("upload", []byte("fLaC")))
	require.Equal(t, ".ogg", StagingExtension("../../etc/passwd", []byte("OggS")))
	require.Equal(t, DefaultExtension, StagingExtension("notes.txt", []byte("hello")))
	require.Equal(t, ".webm", StagingExtension("recording.wav", []byte{0x1A, 0x45, 0xDF, 0xA3}), "content beats a mislabelled name")
	require.Equal(t, ".ogg", StagingExtension("recording.wav", []byte("OggS\x00\x02")))
}
