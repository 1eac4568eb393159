package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/adapter"
	"github.com/kapu/shortlist-go/internal/app"
	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/config"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive recommendations in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		categoryFlag, _ := cmd.Flags().GetString("category")
		identity, _ := cmd.Flags().GetString("identity")
		prefix, _ := cmd.Flags().GetString("prefix")

		category, err := domain.ParseCategory(categoryFlag)
		if err != nil {
			return err
		}

		// keep logs out of the conversation
		logger := zap.NewNop()
		buildCtx, buildCancel := context.WithTimeout(context.Background(), 30*time.Second)
		container, err := app.Build(buildCtx, cfg, logger)
		buildCancel()
		if err != nil {
			return err
		}
		defer container.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		formatter := adapter.NewResponseFormatter(prefix)
		notifier := recommend.NotifierFunc(func(_ string, ev recommend.Event) {
			if ev.Type == recommend.EventFact {
				fmt.Fprintln(out, formatter.FormatFact(ev.Fact))
			}
		})
		engine := container.NewEngine("terminal", category, notifier)
		if identity != "" {
			if _, err := engine.SignIn(identity); err != nil {
				return err
			}
		}

		return runChat(ctx, cmd.InOrStdin(), out, engine, adapter.NewMessageAdapter(prefix), formatter)
	},
}

// runChat reads one line per action until EOF or ctx is done.
func runChat(ctx context.Context, in io.Reader, out io.Writer, engine *recommend.Engine, parser *adapter.MessageAdapter, formatter *adapter.ResponseFormatter) error {
	registry := command.NewDefaultRegistry()
	fmt.Fprintln(out, formatter.FormatHelp())
	fmt.Fprintln(out)
	fmt.Fprintln(out, formatter.FormatView(engine.View()))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parsed := parser.ParseMessage(line)
		switch {
		case !parsed.Known():
			fmt.Fprintln(out, formatter.FormatUnknown())
			continue
		case parsed.Event.Action == adapter.ActionHelp:
			fmt.Fprintln(out, formatter.FormatHelp())
			continue
		}

		result, err := registry.Execute(ctx, engine, parsed.Event.Action, parsed.Event.Params)
		if err != nil {
			fmt.Fprintln(out, formatter.FormatError(err.Error()))
			continue
		}
		fmt.Fprintln(out, formatter.FormatResult(result))
	}
}

func init() {
	chatCmd.Flags().String("category", string(domain.CategoryBook), "Starting category")
	chatCmd.Flags().String("identity", "", "Sign in with this identity")
	chatCmd.Flags().String("prefix", "!", "Command prefix")
	rootCmd.AddCommand(chatCmd)
}
