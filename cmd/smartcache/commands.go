package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/smartcache/plugin/ai"
	"github.com/hrygo/smartcache/server"
)

// env resolves provider credentials; tests swap it for a fake.
var env ai.EnvLookup = ai.OSEnv

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := buildEngine(ctx, p, env)
		if err != nil {
			return err
		}
		defer e.Close()

		srv := server.NewServer(p, e.Service, e.logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		e.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to shut down server")
		}
		return <-errCh
	},
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question through the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		question, _ := cmd.Flags().GetString("question")
		trace, _ := cmd.Flags().GetBool("trace")

		return withEngine(cmd, func(ctx context.Context, e *engine) error {
			answer, err := e.GetAnswer(ctx, user, question, trace)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), answer)
		})
	},
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Store a question and its answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		query, _ := cmd.Flags().GetString("query")
		answer, _ := cmd.Flags().GetString("answer")

		return withEngine(cmd, func(ctx context.Context, e *engine) error {
			interaction, err := e.StoreInteractionAutoCat(ctx, user, query, answer)
			if interaction != nil {
				if perr := printJSON(cmd.OutOrStdout(), storedView{
					ID:       interaction.ID,
					Query:    interaction.Query,
					Category: interaction.Category,
				}); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Mark a cached answer as helpful or not",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		query, _ := cmd.Flags().GetString("query")
		helpful, _ := cmd.Flags().GetBool("helpful")

		return withEngine(cmd, func(ctx context.Context, e *engine) error {
			if err := e.UserFeedback(ctx, user, query, helpful); err != nil {
				return err
			}
			e.logger.Info("feedback recorded", slog.String("user_id", user), slog.Bool("helpful", helpful))
			return nil
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "address of the HTTP server")
	serveCmd.Flags().Int("port", 8081, "port of the HTTP server")
	_ = v.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	askCmd.Flags().String("user", "", "user the question belongs to")
	askCmd.Flags().String("question", "", "question to answer")
	askCmd.Flags().Bool("trace", false, "include the decision trace in the output")
	_ = askCmd.MarkFlagRequired("user")
	_ = askCmd.MarkFlagRequired("question")

	storeCmd.Flags().String("user", "", "user the interaction belongs to")
	storeCmd.Flags().String("query", "", "question of the interaction")
	storeCmd.Flags().String("answer", "", "answer of the interaction")
	_ = storeCmd.MarkFlagRequired("user")
	_ = storeCmd.MarkFlagRequired("query")
	_ = storeCmd.MarkFlagRequired("answer")

	feedbackCmd.Flags().String("user", "", "user who asked")
	feedbackCmd.Flags().String("query", "", "question the feedback is about")
	feedbackCmd.Flags().Bool("helpful", false, "whether the answer was helpful")
	_ = feedbackCmd.MarkFlagRequired("user")
	_ = feedbackCmd.MarkFlagRequired("query")
}

// withEngine builds the engine for a one-shot command and closes it afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine) error) error {
	p, err := loadProfile(v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := buildEngine(ctx, p, env)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

type storedView struct {
	ID       string `json:"id"`
	Query    string `json:"query"`
	Category string `json:"category"`
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
