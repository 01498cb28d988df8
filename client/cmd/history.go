package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unishare/unishare/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed inbound transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.NewDB(historyPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}

		transfers, err := store.NewHistoryStore(db).List()
		if err != nil {
			return err
		}
		if len(transfers) == 0 {
			fmt.Println("no transfers recorded")
			return nil
		}

		for _, t := range transfers {
			fmt.Printf("%s\t%s\t%d bytes\tfrom %s\t%s\n",
				time.Unix(t.ReceivedAt, 0).Format("2006-01-02 15:04"),
				t.Name, t.Size, t.PeerName, t.Path)
		}
		return nil
	},
}
