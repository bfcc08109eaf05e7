package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorrc/taskboard-backend/internal/infrastructure/logging"
	"github.com/lorrc/taskboard-backend/pkg/rtclient"
)

func watchView(orgID string, teamIDs []string) rtclient.View {
	return rtclient.View{OrganizationID: orgID, TeamIDs: teamIDs}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to team and organization rooms and print their events",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			orgID, _ := cmd.Flags().GetString("org")
			teamIDs, _ := cmd.Flags().GetStringSlice("team")
			name, _ := cmd.Flags().GetString("name")
			level, _ := cmd.Flags().GetString("log-level")

			if token == "" {
				token = os.Getenv("TASKBOARD_TOKEN")
			}
			view := watchView(orgID, teamIDs)
			if len(view.Rooms()) == 0 {
				return fmt.Errorf("at least one of --org or --team is required")
			}

			logger := logging.NewLogger(logging.Config{
				Level:       level,
				Format:      "text",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "taskboard-watch",
			})

			out := json.NewEncoder(cmd.OutOrStdout())
			client, err := rtclient.New(rtclient.Options{
				URL:      url,
				Token:    token,
				Identity: rtclient.Identity{UserName: name},
				View:     view,
				OnEvent: func(e rtclient.Event) {
					if err := out.Encode(e); err != nil {
						logger.Warn("failed to print event", "error", err)
					}
				},
				OnStatus: func(s rtclient.State) {
					logger.Info("connection status", "state", s.String(), "online", s.Online())
				},
				OnReconnect: func() {
					logger.Info("reconnected; events may have been missed, re-fetch the board")
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("watching", "url", url, "rooms", view.Rooms())
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("url", "ws://localhost:8080/api/v1/ws", "Socket endpoint")
	cmd.Flags().String("token", "", "Session token (defaults to TASKBOARD_TOKEN)")
	cmd.Flags().String("org", "", "Organization room to join")
	cmd.Flags().StringSlice("team", nil, "Team rooms to join (repeatable)")
	cmd.Flags().String("name", "taskboard watch", "Display name announced to the rooms")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
