package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultExtensions are the encodings the pool can decode.
var DefaultExtensions = []string{"flac", "wav", "mp3"}

// resampleQuality trades CPU for fidelity when an asset's rate differs
// from the output rate. Decoding happens once per asset so it can be high.
const resampleQuality = 4

var errEmptyAudio = errors.New("decoded audio is empty")

// Decoder turns encoded bytes into a playable buffer at the target format.
type Decoder struct {
	target     beep.Format
	extensions map[string]bool
}

// NewDecoder creates a decoder accepting the given extensions (without dot).
func NewDecoder(target beep.Format, extensions []string) *Decoder {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	d := &Decoder{target: target, extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		d.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return d
}

// Decode decodes data, choosing the codec from the asset id's extension.
func (d *Decoder) Decode(assetID string, data []byte) (*beep.Buffer, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(assetID), "."))
	if !d.extensions[ext] {
		return nil, fmt.Errorf("unsupported audio format '%s'", ext)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch ext {
	case "wav":
		streamer, format, err = wav.Decode(bytes.NewReader(data))
	case "mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "flac":
		streamer, format, err = flac.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("no decoder for '%s'", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", assetID, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != d.target.SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, d.target.SampleRate, streamer)
	}

	buf := beep.NewBuffer(d.target)
	buf.Append(s)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", assetID, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", assetID, errEmptyAudio)
	}
	return buf, nil
}
