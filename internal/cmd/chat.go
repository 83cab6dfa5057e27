package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retention-intel/server/internal/agent/chat"
	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/app"
)

var (
	chatCustomer     string
	chatConversation string
	chatApproval     string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Run one chat turn and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatCustomer, "customer", "", "customer id the question is about")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "conversation id to continue")
	chatCmd.Flags().StringVar(&chatApproval, "approve-email-content", "", "approve this email text instead of generating a response")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer a.Close()

	resp, err := a.Chat.HandleTurn(ctx, model.TurnRequest{
		ConversationID:      chatConversation,
		Message:             strings.Join(args, " "),
		CustomerID:          chatCustomer,
		ApproveEmail:        chatApproval != "",
		ApproveEmailContent: chatApproval,
	})
	out := cmd.OutOrStdout()

	var blocked *chat.BlockedError
	if errors.As(err, &blocked) {
		fmt.Fprintf(out, "blocked (conversation %s)\n", blocked.ConversationID)
		for category, hits := range blocked.Findings {
			fmt.Fprintf(out, "  %s: %s\n", category, strings.Join(hits, ", "))
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "conversation: %s\n\n%s\n", resp.ConversationID, resp.Response)
	return nil
}
