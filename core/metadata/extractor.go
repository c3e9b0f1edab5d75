// Package metadata reads embedded tags, cover art and stream format from
// uploaded audio artifacts.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"MoodFM/core/audio"
	"MoodFM/logger"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// ErrUnrecognizedAudio is returned for payloads too short to carry any tag
// format dhowden/tag knows, where its ID3v1 probe would seek before the start.
var ErrUnrecognizedAudio = errors.New("file too small or not a recognized audio format")

// minUntaggedSize is the size of an ID3v1 trailer, the last format tag.ReadFrom tries.
const minUntaggedSize = 128

// Picture is one embedded image.
type Picture struct {
	MIMEType string
	Ext      string // without dot, may be empty
	Data     []byte
}

// Metadata is what an artifact says about itself. Empty strings mean the tag
// was absent.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Pictures []Picture
	Bitrate  int     // kbps
	Duration float64 // seconds
}

// Extractor parses an artifact. name is used for error messages only.
type Extractor interface {
	Extract(ctx context.Context, r io.ReadSeeker, name string) (*Metadata, error)
}

// TagExtractor reads tags with dhowden/tag, enumerates ID3v2 pictures with
// bogem/id3v2 and asks a Prober for bitrate and duration.
type TagExtractor struct {
	prober audio.Prober
}

// NewTagExtractor creates a TagExtractor. prober may be nil, in which case
// bitrate and duration stay zero.
func NewTagExtractor(prober audio.Prober) *TagExtractor {
	return &TagExtractor{prober: prober}
}

// Extract parses r. A file without any tags is not an error. Parsing runs in
// its own goroutine so ctx can bound it.
func (e *TagExtractor) Extract(ctx context.Context, r io.ReadSeeker, name string) (*Metadata, error) {
	type result struct {
		md  *Metadata
		err error
	}
	done := make(chan result, 1)
	go func() {
		md, err := readTags(r)
		done <- result{md, err}
	}()

	var md *Metadata
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to extract metadata from %s: %w", name, res.err)
		}
		md = res.md
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to extract metadata from %s: %w", name, ctx.Err())
	}

	if e.prober != nil {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %w", name, err)
		}
		info, err := e.prober.Probe(ctx, r)
		if err != nil {
			// 时长和码率缺失时按 0 处理
			logger.Warn("[Metadata] probe failed, bitrate/duration left at 0",
				logger.String("artifact", name),
				logger.ErrorField(err))
		} else {
			md.Bitrate = info.Bitrate
			md.Duration = info.Duration
		}
	}
	return md, nil
}

func readTags(r io.ReadSeeker) (*Metadata, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	m, err := tag.ReadFrom(r)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return &Metadata{}, nil
	}
	if err != nil {
		if size < minUntaggedSize {
			return nil, fmt.Errorf("%w (%d bytes)", ErrUnrecognizedAudio, size)
		}
		return nil, err
	}

	md := &Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
	}

	// tag.Metadata exposes a single picture, and for FLAC and Ogg it is the last
	// block. Formats that can carry several are scanned again in file order.
	var scan func(io.ReadSeeker) ([]Picture, error)
	switch {
	case m.Format() == tag.ID3v2_3 || m.Format() == tag.ID3v2_4:
		scan = readID3Pictures
	case m.FileType() == tag.FLAC:
		scan = readFLACPictures
	case m.FileType() == tag.OGG:
		scan = readOggPictures
	}
	if scan != nil {
		pics, err := scan(r)
		if err == nil {
			md.Pictures = pics
			return md, nil
		}
		logger.Debug("[Metadata] picture scan failed, using single picture",
			logger.String("fileType", string(m.FileType())),
			logger.ErrorField(err))
	}
	md.Pictures = singlePicture(m)
	return md, nil
}

// readID3Pictures returns every APIC frame in file order.
func readID3Pictures(r io.ReadSeeker) ([]Picture, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	t, err := id3v2.ParseReader(r, id3v2.Options{Parse: true, ParseFrames: []string{"Attached picture"}})
	if err != nil {
		return nil, err
	}
	// t.Close would close r when it is an *os.File; the caller owns r.

	var pics []Picture
	for _, f := range t.GetFrames(t.CommonID("Attached picture")) {
		pf, ok := f.(id3v2.PictureFrame)
		if !ok || len(pf.Picture) == 0 {
			continue
		}
		pics = append(pics, Picture{MIMEType: pf.MimeType, Data: pf.Picture})
	}
	return pics, nil
}

func singlePicture(m tag.Metadata) []Picture {
	p := m.Picture()
	if p == nil || len(p.Data) == 0 {
		return nil
	}
	return []Picture{{MIMEType: p.MIMEType, Ext: p.Ext, Data: p.Data}}
}

// Extension returns the file extension (with dot) to store the picture under.
func (p Picture) Extension() string {
	if ext := strings.ToLower(strings.TrimPrefix(p.Ext, ".")); ext != "" {
		return "." + ext
	}
	switch strings.ToLower(p.MIMEType) {
	case "image/png", "png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
