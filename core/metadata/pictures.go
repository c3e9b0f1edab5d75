package metadata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// maxOggHeaderPages bounds the search for the comment header. Large embedded
// covers spread the header over many pages.
const maxOggHeaderPages = 1024

var oggCommentPrefixes = [][]byte{
	[]byte("\x03vorbis"),
	[]byte("OpusTags"),
}

// readFLACPictures returns every PICTURE metadata block in file order.
func readFLACPictures(r io.ReadSeeker) ([]Picture, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	f, err := flac.ParseMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac metadata: %w", err)
	}

	var pics []Picture
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flac picture: %w", err)
		}
		if p, ok := fromFLACPicture(pic); ok {
			pics = append(pics, p)
		}
	}
	return pics, nil
}

// readOggPictures returns every METADATA_BLOCK_PICTURE comment of a Vorbis or
// Opus stream in comment order.
func readOggPictures(r io.ReadSeeker) ([]Picture, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	body, err := oggCommentHeader(r)
	if err != nil {
		return nil, err
	}
	cmt, err := flacvorbis.ParseFromMetaDataBlock(flac.MetaDataBlock{Type: flac.VorbisComment, Data: body})
	if err != nil {
		return nil, fmt.Errorf("failed to parse vorbis comment: %w", err)
	}

	var pics []Picture
	for _, c := range cmt.Comments {
		k, v, ok := strings.Cut(c, "=")
		if !ok || !strings.EqualFold(k, "METADATA_BLOCK_PICTURE") {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode picture comment: %w", err)
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(flac.MetaDataBlock{Type: flac.Picture, Data: data})
		if err != nil {
			return nil, fmt.Errorf("failed to parse ogg picture: %w", err)
		}
		if p, ok := fromFLACPicture(pic); ok {
			pics = append(pics, p)
		}
	}
	return pics, nil
}

// fromFLACPicture skips linked pictures (MIME "-->") and empty ones.
func fromFLACPicture(pic *flacpicture.MetadataBlockPicture) (Picture, bool) {
	if pic.MIME == flacpicture.MIMEURL || len(pic.ImageData) == 0 {
		return Picture{}, false
	}
	return Picture{MIMEType: pic.MIME, Data: pic.ImageData}, true
}

// oggCommentHeader reassembles packets from the first pages of an Ogg stream
// and returns the comment header without its codec prefix. Page checksums are
// not verified; tag.ReadFrom already did.
func oggCommentHeader(r io.Reader) ([]byte, error) {
	var packet bytes.Buffer
	header := make([]byte, 27)
	for page := 0; page < maxOggHeaderPages; page++ {
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, fmt.Errorf("failed to read ogg page: %w", err)
		}
		if string(header[:4]) != "OggS" {
			return nil, errors.New("expected ogg capture pattern")
		}
		segments := make([]byte, header[26])
		if _, err := io.ReadFull(r, segments); err != nil {
			return nil, fmt.Errorf("failed to read ogg segment table: %w", err)
		}
		for _, n := range segments {
			if _, err := io.CopyN(&packet, r, int64(n)); err != nil {
				return nil, fmt.Errorf("failed to read ogg segment: %w", err)
			}
			if n == 255 {
				continue
			}
			body := packet.Bytes()
			for _, prefix := range oggCommentPrefixes {
				if bytes.HasPrefix(body, prefix) {
					return body[len(prefix):], nil
				}
			}
			packet.Reset()
		}
	}
	return nil, errors.New("no comment header in ogg stream")
}
