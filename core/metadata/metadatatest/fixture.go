// Package metadatatest builds audio fixtures for tests.
package metadatatest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// Cover is one picture to embed.
type Cover struct {
	MIMEType string
	Data     []byte
}

// Tags describes the tags to write. Empty fields are not written.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Covers []Cover
}

// PlainAudio returns bytes that carry no recognisable tags.
func PlainAudio() []byte {
	return make([]byte, 4096)
}

// ID3 returns an ID3v2.4 header followed by padding audio bytes.
func ID3(tags Tags) ([]byte, error) {
	t := id3v2.NewEmptyTag()
	t.SetVersion(4)
	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		t.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		t.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		t.SetAlbum(tags.Album)
	}
	if tags.Genre != "" {
		t.SetGenre(tags.Genre)
	}
	for i, c := range tags.Covers {
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    c.MIMEType,
			PictureType: id3v2.PTOther,
			Description: fmt.Sprintf("cover-%d", i),
			Picture:     c.Data,
		})
	}

	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, err
	}
	buf.Write(PlainAudio())
	return buf.Bytes(), nil
}

// FLAC returns a FLAC stream whose metadata carries tags as a Vorbis comment
// and one PICTURE block per cover, in order.
func FLAC(tags Tags) []byte {
	f := &flac.File{
		Meta: []*flac.MetaDataBlock{
			{Type: flac.StreamInfo, Data: make([]byte, 34)},
		},
		// frame sync code followed by filler
		Frames: append([]byte{0xFF, 0xF8}, PlainAudio()...),
	}
	if cmt := vorbisComment(tags); len(cmt.Comments) > 0 {
		block := cmt.Marshal()
		f.Meta = append(f.Meta, &block)
	}
	for i, c := range tags.Covers {
		block := picture(i, c).Marshal()
		f.Meta = append(f.Meta, &block)
	}
	return f.Marshal()
}

// Ogg returns an Ogg Vorbis stream with an identification page and a comment
// page. Covers are METADATA_BLOCK_PICTURE comments, in order.
func Ogg(tags Tags) []byte {
	cmt := vorbisComment(tags)
	for i, c := range tags.Covers {
		block := picture(i, c).Marshal()
		cmt.Comments = append(cmt.Comments, "METADATA_BLOCK_PICTURE="+base64.StdEncoding.EncodeToString(block.Data))
	}

	ident := append([]byte("\x01vorbis"), make([]byte, 23)...)
	comment := append([]byte("\x03vorbis"), cmt.Marshal().Data...)
	comment = append(comment, 1) // framing bit

	var buf bytes.Buffer
	buf.Write(oggPage(0x02, 0, ident))
	buf.Write(oggPage(0x00, 1, comment))
	buf.Write(oggPage(0x04, 2, PlainAudio()[:64]))
	return buf.Bytes()
}

func vorbisComment(tags Tags) *flacvorbis.MetaDataBlockVorbisComment {
	cmt := flacvorbis.New()
	for _, kv := range [][2]string{
		{flacvorbis.FIELD_TITLE, tags.Title},
		{flacvorbis.FIELD_ARTIST, tags.Artist},
		{flacvorbis.FIELD_ALBUM, tags.Album},
		{flacvorbis.FIELD_GENRE, tags.Genre},
	} {
		if kv[1] != "" {
			_ = cmt.Add(kv[0], kv[1])
		}
	}
	return cmt
}

func picture(i int, c Cover) *flacpicture.MetadataBlockPicture {
	return &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        c.MIMEType,
		Description: fmt.Sprintf("cover-%d", i),
		ImageData:   c.Data,
	}
}

// oggPage frames one packet as a single Ogg page with a valid checksum.
// The packet must fit in one page (under 255 segments).
func oggPage(flags byte, seq uint32, packet []byte) []byte {
	var lacing []byte
	n := len(packet)
	for ; n >= 255; n -= 255 {
		lacing = append(lacing, 255)
	}
	lacing = append(lacing, byte(n))

	var page bytes.Buffer
	page.WriteString("OggS")
	page.WriteByte(0)     // version
	page.WriteByte(flags) // 0x02 first page, 0x04 last page
	binary.Write(&page, binary.LittleEndian, uint64(0))
	binary.Write(&page, binary.LittleEndian, uint32(1)) // serial
	binary.Write(&page, binary.LittleEndian, seq)
	binary.Write(&page, binary.LittleEndian, uint32(0)) // checksum, filled below
	page.WriteByte(byte(len(lacing)))
	page.Write(lacing)
	page.Write(packet)

	b := page.Bytes()
	binary.LittleEndian.PutUint32(b[22:26], oggCRC(b))
	return b
}

var oggCRCTable = func() (t [256]uint32) {
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^v]
	}
	return crc
}
