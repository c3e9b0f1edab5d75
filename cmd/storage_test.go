package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"MoodFM/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "audio/a.mp3", strings.NewReader("a"), 1, ""))
	require.NoError(t, store.Save(ctx, "audio/b.mp3", strings.NewReader("b"), 1, ""))
	require.NoError(t, store.Save(ctx, "covers/a_cover.jpg", strings.NewReader("c"), 1, ""))

	n, err := deleteByPrefix(ctx, store, "audio/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "covers/a_cover.jpg", left[0].Key)
}

func TestPrintObjects(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	printObjects(&buf, "local", "", []storage.ObjectInfo{
		{Key: "covers/x_cover.jpg", Size: 2048, LastModified: ts},
		{Key: "audio/x.mp3", Size: 3 << 20, LastModified: ts},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "总文件数: 2")
	assert.Contains(t, out, "3.0 MB")
	assert.Less(t, strings.Index(out, "audio/x.mp3"), strings.Index(out, "covers/x_cover.jpg"))
}
