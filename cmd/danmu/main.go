package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// 构建时注入。
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "danmu",
		Short: "B站直播弹幕接入与归档服务",
		Long: `danmu 连接直播间弹幕服务器，解码二进制帧并将事件归档、推送给下游订阅者。

  serve   按配置接入多个直播间，提供 WebSocket 订阅与 HTTP 查询
  watch   接入单个直播间，以 JSON Lines 输出解码后的事件`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
