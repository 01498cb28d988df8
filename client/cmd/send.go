package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unishare/unishare/internal/transfer"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <peer-id> <file>",
	Short: "Send a file to an online peer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetPeer, filePath := args[0], args[1]
		log := newLogger()
		ctx := context.Background()

		src, f, err := transfer.FileSource(filePath)
		if err != nil {
			return err
		}
		defer f.Close()

		manager, err := connect(ctx, log)
		if err != nil {
			return err
		}
		defer manager.Disconnect()

		display := newProgressDisplay()
		manager.OnProgress(display.update)

		if err := manager.Initiate(targetPeer); err != nil {
			return err
		}

		waitCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := manager.WaitForChannel(waitCtx, targetPeer); err != nil {
			return fmt.Errorf("no data channel to %s: %w", targetPeer, err)
		}

		fileID, err := manager.SendFile(ctx, targetPeer, src)
		if err != nil {
			return err
		}
		display.finish(fileID)

		fmt.Printf("sent %s (%d bytes) to %s\n", src.Name, src.Size, targetPeer)
		return nil
	},
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "how long to wait for the data channel to open")
}
