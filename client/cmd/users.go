package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unishare/unishare/internal/signaling"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the peers currently connected to the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := context.Background()

		manager, err := connect(ctx, log)
		if err != nil {
			return err
		}
		defer manager.Disconnect()

		rosterCh := make(chan []signaling.User, 1)
		manager.OnOnlineUsers(func(users []signaling.User) {
			select {
			case rosterCh <- users:
			default:
			}
		})

		select {
		case users := <-rosterCh:
			if len(users) == 0 {
				fmt.Println("no other peers online")
				return nil
			}
			for _, u := range users {
				fmt.Printf("%s %s\t%s\tconnected %s\n", u.Emoji, u.Username, u.ID,
					time.Unix(u.ConnectedAt, 0).Format(time.RFC3339))
			}
			return nil
		case <-time.After(10 * time.Second):
			return fmt.Errorf("timed out waiting for the roster broadcast")
		}
	},
}
