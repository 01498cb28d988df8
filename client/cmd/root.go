package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unishare/unishare/internal/logger"
	"github.com/unishare/unishare/internal/peer"
	"github.com/unishare/unishare/internal/signaling"
)

var (
	relayURL     string
	username     string
	emoji        string
	downloadsDir string
	historyPath  string
)

var rootCmd = &cobra.Command{
	Use:  "unishare",
	Long: "unishare streams files directly between peers over WebRTC, using a relay only for signaling",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "ws://localhost:8080", "relay base URL")
	rootCmd.PersistentFlags().StringVar(&username, "name", "anonymous", "display name announced to other peers")
	rootCmd.PersistentFlags().StringVar(&emoji, "emoji", "📁", "display emoji announced to other peers")
	rootCmd.PersistentFlags().StringVar(&downloadsDir, "downloads", "downloads", "directory for received files")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history-db", "unishare.sqlite3", "transfer history database path")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(historyCmd)
}

// connect dials the relay under a fresh identity and starts a manager.
func connect(ctx context.Context, log *logrus.Logger) (*peer.Manager, error) {
	peerID := uuid.NewString()

	signal, err := signaling.Dial(ctx, relayURL, peerID, signaling.DefaultReconnectPolicy(), log)
	if err != nil {
		return nil, err
	}

	manager := peer.NewManager(peer.Options{
		PeerID:   peerID,
		Username: username,
		Emoji:    emoji,
		Signal:   signal,
		Logger:   log,
	})
	manager.Start()

	log.Infof("Connected to relay as %s (%s)", username, peerID)
	return manager, nil
}

func newLogger() *logrus.Logger {
	return logger.New()
}
