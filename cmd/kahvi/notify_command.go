package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kahvi/internal/notifications"
	"kahvi/internal/reading"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return errors.New("notifications.ntfy_topic is not set")
			}
			n := notifications.NewNotifier(cfg)
			if err := n.Notify(cmd.Context(), notifications.EventTest, reading.Reading{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	})
	return notifyCmd
}
