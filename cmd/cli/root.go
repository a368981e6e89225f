package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "survey-assistant",
		Short:        "Conversational survey builder",
		Long:         "survey-assistant builds and edits Voxco survey documents through a chat with an LLM, starting from scratch, an existing survey or a Word/PDF questionnaire.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newEventsCmd(),
	)
	return rootCmd
}
