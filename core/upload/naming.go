package upload

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"MoodFM/storage"

	"github.com/google/uuid"
)

var (
	nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]+`)
	multipleSpaces  = regexp.MustCompile(`\s+`)
)

const maxBaseLength = 100

// baseName strips any directory part a client put into the file name.
func baseName(filename string) string {
	return path.Base(strings.ReplaceAll(filename, "\\", "/"))
}

// titleFromFilename is the title default: the file name without extension.
func titleFromFilename(filename string) string {
	base := baseName(filename)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// sanitize turns a free-form name into something safe for a storage key.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	// Replace multiple spaces with a single underscore
	name = multipleSpaces.ReplaceAllString(name, "_")
	name = nonAlphaNumeric.ReplaceAllString(name, "")
	name = strings.Trim(name, ".")
	if len(name) > maxBaseLength {
		name = name[:maxBaseLength]
	}
	if name == "" {
		name = "fallback_filename"
	}
	return name
}

func sanitizeExt(ext string) string {
	ext = nonAlphaNumeric.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext == "" {
		return ""
	}
	return "." + strings.ToLower(ext)
}

// audioKey: audio/<unixMillis>_<uuid>_<sanitised name><ext>
func audioKey(now time.Time, id uuid.UUID, filename string) string {
	base := baseName(filename)
	ext := path.Ext(base)
	return fmt.Sprintf("%s%d_%s_%s%s", storage.AudioPrefix, now.UnixMilli(), id,
		sanitize(strings.TrimSuffix(base, ext)), sanitizeExt(ext))
}

// coverKey: covers/<unixMillis>_<uuid>_<sanitised base>_cover<ext>
func coverKey(now time.Time, id uuid.UUID, filename, ext string) string {
	return fmt.Sprintf("%s%d_%s_%s_cover%s", storage.CoverPrefix, now.UnixMilli(), id,
		sanitize(titleFromFilename(filename)), ext)
}
