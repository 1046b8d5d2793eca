package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloo-solutions/ragchat/internal/api/handlers"
	"github.com/cloo-solutions/ragchat/internal/api/middleware"
	"github.com/cloo-solutions/ragchat/internal/config"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/server"
	"github.com/cloo-solutions/ragchat/internal/source"
	"github.com/spf13/cobra"
)

// AddPersistentFlags registers the knowledge base overrides shared by every
// command.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("source", "", "Knowledge source: file path or s3://bucket/key (overrides RAGCHAT_KNOWLEDGE_SOURCE)")
	cmd.PersistentFlags().Int("top-k", 0, "Number of chunks to retrieve per question (overrides RAGCHAT_TOP_K)")
	cmd.PersistentFlags().String("provider", "", "Model provider: ollama or openai (overrides RAGCHAT_PROVIDER)")
	cmd.PersistentFlags().Bool("output", false, "Output as JSON")
}

// ChatCmd returns the interactive chat command
func ChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the knowledge base",
		Long:  "Loads the knowledge source and answers questions typed on stdin until the exit keyword or EOF.",
		Args:  cobra.NoArgs,
		RunE:  RunChat,
	}
}

// RunChat starts the interactive session; it is also the root command's
// default action.
func RunChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Bootstrap(ctx, overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	return RunREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), rt.Service, rt.Config.ExitKeyword)
}

// AskCmd returns the one-shot question command
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Bootstrap(cmd.Context(), overridesFromFlags(cmd))
			if err != nil {
				return err
			}
			defer rt.Close()

			answer, err := rt.Service.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return writeJSON(cmd, handlers.AskResponse{
					Answer:  answer.Response,
					Context: handlers.ResultsToResponse(answer.Context),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Response)
			return nil
		},
	}
}

// SearchCmd returns the retrieval-only command
func SearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks most similar to a query",
		Long:  "Ranks the knowledge base against the query without generating an answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Bootstrap(cmd.Context(), overridesFromFlags(cmd))
			if err != nil {
				return err
			}
			defer rt.Close()

			results, err := rt.Service.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}

			if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
				return writeJSON(cmd, handlers.SearchResponse{Results: handlers.ResultsToResponse(results)})
			}
			printResults(cmd, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 0, "Maximum number of results (default: configured top-k)")

	return cmd
}

// ServeCmd returns the HTTP API command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Loads the knowledge base once and serves /v1/ask and /v1/search over HTTP.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides RAGCHAT_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := Bootstrap(ctx, overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	port := rt.Config.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	var validator middleware.TokenValidator
	if rt.Config.HasAuth() {
		validator = middleware.NewStaticToken(rt.Config.APIKey)
	} else {
		log.Println("warning: RAGCHAT_API_KEY not set, /v1 is unauthenticated")
	}

	srv := &http.Server{
		Addr: ":" + port,
		Handler: server.NewRouter(server.RouterConfig{
			TokenValidator: validator,
			ChatHandler:    handlers.NewChatHandler(rt.Service),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// PushCmd returns the command that uploads a local knowledge file to S3
func PushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <file> <s3://bucket/key>",
		Short: "Upload a knowledge file to S3",
		Long:  "Creates the bucket if needed and uploads the file so it can be used as --source s3://bucket/key.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bucket, key, err := source.ParseS3(args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Parse()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateS3(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			text, err := source.NewLoader(nil).Load(ctx, args[0])
			if err != nil {
				return err
			}

			client, err := NewS3Client(ctx, cfg, args[1])
			if err != nil {
				return err
			}
			if err := client.EnsureBucket(ctx, bucket); err != nil {
				return err
			}
			if err := client.PutObject(ctx, bucket, key, []byte(text)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

func printResults(cmd *cobra.Command, results []retrieval.Result) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(results))
	for i, r := range results {
		score := "n/a"
		if r.Score != retrieval.Unscored {
			score = fmt.Sprintf("%.4f", r.Score)
		}
		fmt.Fprintf(out, "%d. [chunk %d] (%s)\n", i+1, r.Index, score)
		fmt.Fprintf(out, "   %s\n", r.Text)
	}
}
