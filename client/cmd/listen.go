package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unishare/unishare/internal/signaling"
	"github.com/unishare/unishare/internal/store"
	"github.com/unishare/unishare/internal/transfer"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stay online and receive files from other peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := context.Background()

		db, err := store.NewDB(historyPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		history := store.NewHistoryStore(db)

		if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create downloads directory: %w", err)
		}

		manager, err := connect(ctx, log)
		if err != nil {
			return err
		}
		defer manager.Disconnect()

		display := newProgressDisplay()
		manager.OnProgress(display.update)

		manager.OnOnlineUsers(func(users []signaling.User) {
			fmt.Printf("online peers: %d\n", len(users))
			for _, u := range users {
				fmt.Printf("  %s %s (%s)\n", u.Emoji, u.Username, u.ID)
			}
		})

		manager.OnFileReceived(func(f transfer.FileReceived) {
			display.finish(f.FileID)

			path := filepath.Join(downloadsDir, filepath.Base(f.Name))
			if err := os.WriteFile(path, f.Data, 0o644); err != nil {
				log.Errorf("Failed to write %s: %v", path, err)
				return
			}

			peerName := f.PeerID
			if u, ok := manager.Roster().Lookup(f.PeerID); ok {
				peerName = u.Username
			}

			if err := history.Record(store.Transfer{
				FileID:   f.FileID,
				Name:     f.Name,
				MimeType: f.MimeType,
				Size:     int64(len(f.Data)),
				PeerID:   f.PeerID,
				PeerName: peerName,
				Path:     path,
			}); err != nil {
				log.Warnf("Failed to record transfer history: %v", err)
			}

			fmt.Printf("received %s (%d bytes) from %s -> %s\n", f.Name, len(f.Data), peerName, path)
		})

		manager.OnTransferFailed(func(fileID, peerID string, err error) {
			display.finish(fileID)
			log.Errorf("Transfer %s from %s failed: %v", fileID, peerID, err)
		})

		fmt.Printf("listening as %s, files land in %s\n", manager.ID(), downloadsDir)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("shutting down")
		return nil
	},
}
