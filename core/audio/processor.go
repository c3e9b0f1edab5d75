package audio

import (
	"context"
	"io"
)

// StreamInfo is the format-level information of an audio artifact.
type StreamInfo struct {
	Bitrate  int     // kbps
	Duration float64 // seconds
}

// Prober reads format information from an audio stream.
type Prober interface {
	Probe(ctx context.Context, r io.Reader) (StreamInfo, error)
}
