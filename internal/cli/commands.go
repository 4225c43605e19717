package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"memorialwall/internal/wall"
)

// NewListCommand creates the list command
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the message wall, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.requestContext(cmd.Context())
			defer cancel()

			entries, err := opts.openStore().Load(ctx, opts.cfg.Scope)
			if err != nil {
				// 読み込み失敗は空のリストとして扱う
				opts.log.Warnf("Could not load messages: %v", err)
				entries = nil
			}
			return printEntries(cmd.OutOrStdout(), opts.Format, wall.Present(entries))
		},
	}
}

// PostOptions holds flags for the post command
type PostOptions struct {
	*RootOptions
	Author string
	Body   string
}

// NewPostCommand creates the post command
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Share a message",
		Long: `Share a message on the wall.

The author is limited to 60 characters and the message to 800; longer
input is truncated.

Example:
  wall post --author "Aunt Lindiwe" --body "Thinking of you all."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.requestContext(cmd.Context())
			defer cancel()

			store := opts.openStore()
			e, err := wall.NewComposer(store, nil, opts.cfg.Scope, opts.log).Submit(ctx, opts.Author, opts.Body)
			if errors.Is(err, wall.ErrValidation) {
				return fmt.Errorf("please enter both your name and a message")
			}
			if err != nil {
				return fmt.Errorf("sorry, we couldn't post your message right now, please try again: %w", err)
			}
			return printEntry(cmd.OutOrStdout(), opts.Format, e)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "your name")
	cmd.Flags().StringVar(&opts.Body, "body", "", "your message")

	return cmd
}

// WatchOptions holds flags for the watch command
type WatchOptions struct {
	*RootOptions
	Author string
}

// NewWatchCommand creates the watch command
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the wall and optionally post from stdin",
		Long: `Print the wall and reprint it whenever it changes.

With --author, every line read from stdin is posted as a message by that
author. The author is kept between messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "post stdin lines under this name")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, in io.Reader, out io.Writer) error {
	w := wall.Open(ctx, opts.openStore(), opts.cfg.Scope, opts.log)
	defer w.Close()

	if !w.Live() {
		opts.log.Infof("Shared messages are not configured; showing messages on this device only")
	}

	var lines <-chan string
	if opts.Author != "" {
		lines = readLines(ctx, in)
	}
	draft := &wall.Draft{Author: opts.Author}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.Changed():
			if err := printEntries(out, opts.Format, w.Entries()); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			draft.Body = line
			sctx, cancel := opts.requestContext(ctx)
			_, err := w.SubmitDraft(sctx, draft)
			cancel()
			switch {
			case errors.Is(err, wall.ErrValidation):
				// 空行は無視
			case err != nil:
				fmt.Fprintf(out, "Sorry, we couldn't post your message right now. Please try again. (%v)\n", err)
			}
		}
	}
}

// readLines streams lines from r until EOF or ctx is done
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// ClearOptions holds flags for the clear command
type ClearOptions struct {
	*RootOptions
	Yes bool
}

// NewClearCommand creates the clear command
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear messages stored on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.UsesRemote() {
				return wall.ErrClearUnavailable
			}

			if !opts.Yes {
				fmt.Fprint(cmd.OutOrStdout(), "This clears messages on this device only. Continue? [y/N] ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			ctx, cancel := opts.requestContext(cmd.Context())
			defer cancel()

			w := wall.Open(ctx, opts.openStore(), opts.cfg.Scope, opts.log)
			defer w.Close()

			if err := w.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared messages on this device.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
