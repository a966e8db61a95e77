package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/internal/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive streaming chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			// 日志不写 stdout，避免与对话输出混在一起
			for i, p := range cfg.Log.OutputPaths {
				if p == "stdout" {
					cfg.Log.OutputPaths[i] = "stderr"
				}
			}
			logger, err := bootstrap.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{DisableMetrics: true})
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Warn("close components", zap.Error(err))
				}
			}()

			engine, err := c.NewEngine(sessionID)
			if err != nil {
				return err
			}
			return runREPL(ctx, engine, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "cli", "session key; persistent memory backends resume its history")
	return cmd
}

// runREPL 逐行读取输入并流式输出回复，直到 EOF、/exit 或 ctx 取消
func runREPL(ctx context.Context, engine chatengine.ChatEngine, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "chatflow (%s engine). Commands: /history /reset /exit\n", engine.Name())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := engine.Reset(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, "history cleared")
			}
			continue
		case "/history":
			if err := printHistory(ctx, engine, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}

		if err := streamTurn(ctx, engine, line, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func streamTurn(ctx context.Context, engine chatengine.ChatEngine, message string, out io.Writer) error {
	stream, err := engine.StreamChat(ctx, message)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if !chunk.Done {
			fmt.Fprint(out, chunk.Delta)
			continue
		}

		fmt.Fprintln(out)
		resp := chunk.Response
		if resp.CondensedQuery != "" {
			fmt.Fprintf(out, "  (searched: %s)\n", resp.CondensedQuery)
		}
		for i, n := range resp.Sources {
			fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, n.SourceID, n.Score)
		}
	}
}

func printHistory(ctx context.Context, engine chatengine.ChatEngine, out io.Writer) error {
	history, err := engine.History(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "(empty)")
		return nil
	}
	for _, m := range history {
		fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
	}
	return nil
}
