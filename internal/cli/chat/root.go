package chat

import (
	"github.com/cloo-solutions/ragchat/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the ragchat command tree. Without a subcommand it starts
// an interactive chat.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "Ask questions about a text file with retrieval-augmented generation",
		Long: `ragchat embeds every line of a knowledge file, retrieves the lines closest
to each question and asks a language model to answer from them only.

Running ragchat without a command starts an interactive chat.

Environment variables:
  RAGCHAT_KNOWLEDGE_SOURCE  Knowledge file or s3://bucket/key (default: biology.txt)
  RAGCHAT_PROVIDER          ollama or openai (default: ollama)
  RAGCHAT_OLLAMA_HOST       Ollama server (default: http://localhost:11434)
  RAGCHAT_OPENAI_API_KEY    API key for the openai provider
  RAGCHAT_TOP_K             Chunks retrieved per question (default: 2)
  RAGCHAT_EXIT_KEYWORD      Word that ends a chat session (default: exit)`,
		Version:       version,
		Args:          cobra.NoArgs,
		RunE:          RunChat,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddPersistentFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(ChatCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(PushCmd())

	return rootCmd
}
