package speech

import "fmt"

// Voice is one of the provider's built-in speaker voices.
type Voice string

const (
	VoiceAlloy   Voice = "alloy"
	VoiceEcho    Voice = "echo"
	VoiceFable   Voice = "fable"
	VoiceOnyx    Voice = "onyx"
	VoiceNova    Voice = "nova"
	VoiceShimmer Voice = "shimmer"

	DefaultVoice = VoiceNova
)

// Format is the encoded audio format returned to callers.
type Format string

const (
	FormatOpus Format = "opus"
	FormatMP3  Format = "mp3"
	FormatAAC  Format = "aac"
	FormatFLAC Format = "flac"

	DefaultFormat = FormatOpus
)

var voices = []Voice{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

var formats = []Format{FormatOpus, FormatMP3, FormatAAC, FormatFLAC}

func Voices() []Voice { return append([]Voice(nil), voices...) }

func Formats() []Format { return append([]Format(nil), formats...) }

func (v Voice) Valid() bool {
	for _, known := range voices {
		if v == known {
			return true
		}
	}
	return false
}

func (f Format) Valid() bool {
	for _, known := range formats {
		if f == known {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type of a stream in this format.
// Opus is delivered in an Ogg container.
func (f Format) ContentType() string {
	switch f {
	case FormatOpus:
		return "audio/ogg"
	case FormatMP3:
		return "audio/mpeg"
	case FormatAAC:
		return "audio/aac"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// muxer and demuxer are the ffmpeg container names for the format. Raw AAC
// is read with the aac demuxer but written with the adts muxer.
func (f Format) muxer() string {
	switch f {
	case FormatOpus:
		return "ogg"
	case FormatAAC:
		return "adts"
	default:
		return string(f)
	}
}

func (f Format) demuxer() string {
	if f == FormatOpus {
		return "ogg"
	}
	return string(f)
}

func (f Format) codec() string {
	switch f {
	case FormatOpus:
		return "libopus"
	case FormatMP3:
		return "libmp3lame"
	case FormatAAC:
		return "aac"
	default:
		return "flac"
	}
}

// Normalize applies the defaults for empty values and validates both options.
// Invalid values fail with KindInvalidInput.
func Normalize(voice Voice, format Format) (Voice, Format, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	if format == "" {
		format = DefaultFormat
	}
	if !voice.Valid() {
		return "", "", newError(KindInvalidInput, nil, fmt.Sprintf("invalid voice: %s. Must be one of %v", voice, voices))
	}
	if !format.Valid() {
		return "", "", newError(KindInvalidInput, nil, fmt.Sprintf("invalid format: %s. Must be one of %v", format, formats))
	}
	return voice, format, nil
}
