package cmd

import (
	"fmt"

	"MoodFM/db"

	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "初始化数据库表结构",
	Long:  `连接MySQL并创建 users、songs、playlists、play_history 表（已存在则跳过）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.ConnectDB(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.InitDB(cmd.Context(), conn); err != nil {
			return err
		}
		fmt.Println("数据库初始化完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
