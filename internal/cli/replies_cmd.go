package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/spf13/cobra"
)

// repliesCmd represents the replies command group
var repliesCmd = &cobra.Command{
	Use:   "replies",
	Short: "Reply tracking",
}

// repliesCheckCmd runs one poll cycle against the configured mailbox
var repliesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reply poll cycle",
	Long:  `Connect to the configured mailbox, match unseen messages to contacts, and record replies.`,
	Run: func(cmd *cobra.Command, args []string) {
		locks := services.NewKeyedMutex()
		dialer := services.NewIMAPMailboxDialer(cfg.IMAP)
		replyService := services.NewReplyService(db, dialer, locks, logService)

		if err := replyService.PollOnce(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: poll cycle failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Poll cycle completed.")
	},
}

func init() {
	repliesCmd.AddCommand(repliesCheckCmd)
}
