package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// BucketStats 存储统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByKind       map[string]int64 // bytes per kind, see Kind
}

// Summarize aggregates a listing.
func Summarize(objects []ObjectInfo) BucketStats {
	stats := BucketStats{ByKind: make(map[string]int64)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByKind[Kind(obj.Key)] += obj.Size
	}
	return stats
}

// Kind 从文件名推断内容类型
func Kind(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	default:
		return "other"
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
