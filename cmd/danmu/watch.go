package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bili-danmu/internal/discovery"
	"bili-danmu/internal/observability"
	"bili-danmu/internal/protocol"
	"bili-danmu/internal/service"
	"bili-danmu/internal/session"
)

func watchCmd() *cobra.Command {
	var (
		discoveryURL string
		clientVer    string
		heartbeat    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <room_id>",
		Short: "Stream decoded events of one room as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || roomID == 0 {
				return fmt.Errorf("invalid room id %q", args[0])
			}
			observability.InitLogger("danmu-watch")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			sink := service.EventSinkFunc(func(ctx context.Context, evt service.RoomEvent) error {
				mu.Lock()
				defer mu.Unlock()
				return enc.Encode(evt)
			})

			relay := service.NewRelay(discovery.NewClient(discoveryURL), sink,
				session.WithClientVer(clientVer),
				session.WithHeartbeatInterval(heartbeat),
			)
			return relay.Run(ctx, roomID)
		},
	}

	cmd.Flags().StringVar(&discoveryURL, "discovery-url", discovery.DefaultURL, "danmu server discovery endpoint")
	cmd.Flags().StringVar(&clientVer, "client-ver", protocol.DefaultClientVer, "clientver sent in the auth frame")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 30*time.Second, "heartbeat interval")

	return cmd
}
