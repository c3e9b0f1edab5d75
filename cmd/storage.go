package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"MoodFM/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix string
	storageStats  bool
	storageDelete bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "查看和管理已上传的文件",
	Long:  `列出本地目录或MinIO存储桶中的音频和封面文件，支持按前缀过滤、统计信息和按前缀删除。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		store, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}

		if storageDelete {
			if storagePrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := deleteByPrefix(ctx, store, storagePrefix)
			if err != nil {
				return err
			}
			fmt.Printf("已删除 %d 个文件 (前缀: %s)\n", n, storagePrefix)
			return nil
		}

		objects, err := store.List(ctx, storagePrefix)
		if err != nil {
			return err
		}
		printObjects(cmd.OutOrStdout(), cfg.StorageBackend, storagePrefix, objects, storageStats)
		return nil
	},
}

func deleteByPrefix(ctx context.Context, store storage.ArtifactStore, prefix string) (int, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for i, obj := range objects {
		if err := store.Delete(ctx, obj.Key); err != nil {
			return i, err
		}
	}
	return len(objects), nil
}

func printObjects(w io.Writer, backend, prefix string, objects []storage.ObjectInfo, withStats bool) {
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	fmt.Fprintf(w, "存储后端: %s\n", backend)
	fmt.Fprintf(w, "前缀过滤: %s\n", prefix)
	if withStats {
		stats := storage.Summarize(objects)
		fmt.Fprintf(w, "总文件数: %d\n", stats.TotalObjects)
		fmt.Fprintf(w, "总存储大小: %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Fprintf(w, "最后更新时间: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
		}
		for kind, size := range stats.ByKind {
			fmt.Fprintf(w, "  %s: %s\n", kind, storage.FormatSize(size))
		}
	}
	fmt.Fprintln(w, "文件列表:")
	for _, obj := range objects {
		fmt.Fprintf(w, "  ├─ %s (%s, %s)\n", obj.Key, storage.FormatSize(obj.Size),
			obj.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "", "按前缀过滤文件或指定要删除的目录")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "显示统计信息")
	storageCmd.Flags().BoolVarP(&storageDelete, "delete", "d", false, "删除指定前缀下的所有文件")

	storageCmd.Example = `  # 列出所有文件
  moodfm storage

  # 只看封面并显示统计
  moodfm storage -p covers/ -s

  # 删除音频目录下的所有文件
  moodfm storage -d -p audio/`
}
