package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/chatpopup/internal/chatapi"
	"github.com/MikeSquared-Agency/chatpopup/internal/config"
	"github.com/MikeSquared-Agency/chatpopup/internal/page"
	"github.com/MikeSquared-Agency/chatpopup/internal/popup"
)

const (
	windowSelector = "#chat-window"
	formSelector   = "#chat-form"
)

var (
	flagBaseURL      string
	flagConversation string
	flagInterval     time.Duration
	flagCSRFToken    string
	flagSender       string
	flagOnce         bool
	flagList         bool
	flagLogLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "chatpopup",
	Short: "Terminal chat popup: lines on stdin are sent, new messages are printed as HTML nodes",
	Long: `Terminal chat popup: lines on stdin are sent, new messages are printed as HTML nodes.
The session ends on interrupt or when stdin is closed.`,
	RunE:  runPopup,
}

func init() {
	_ = godotenv.Load()
	cfg := config.Load()

	flags := rootCmd.Flags()
	flags.StringVar(&flagBaseURL, "base-url", cfg.BaseURL, "chat backend base URL")
	flags.StringVarP(&flagConversation, "conversation", "c", cfg.ConversationID, "conversation id")
	flags.DurationVar(&flagInterval, "interval", cfg.PollInterval, "poll interval")
	flags.StringVar(&flagCSRFToken, "csrf-token", cfg.CSRFToken, "csrftoken cookie value to start with")
	flags.StringVar(&flagSender, "sender", cfg.Sender, "sender name passed to the backend")
	flags.BoolVar(&flagOnce, "once", false, "fetch the conversation once and exit")
	flags.BoolVar(&flagList, "list", false, "list conversations, most recently active first, and exit")
	flags.StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPopup(cmd *cobra.Command, args []string) error {
	if flagConversation == "" && !flagList {
		return errors.New("--conversation is required")
	}
	logger := config.NewLogger(cmd.ErrOrStderr(), flagLogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := chatapi.New(flagBaseURL, chatapi.WithCSRFToken(flagCSRFToken), chatapi.WithSender(flagSender))
	if err != nil {
		return fmt.Errorf("new api client: %w", err)
	}

	if flagList {
		return listConversations(ctx, cmd.OutOrStdout(), client)
	}

	doc := page.NewDocument()
	panel := page.NewPanel()
	panel.Mirror(cmd.OutOrStdout())
	form := page.NewForm("conversation", page.BodyField)
	form.Set("conversation", flagConversation)
	if err := doc.Register(windowSelector, panel); err != nil {
		return err
	}
	if err := doc.Register(formSelector, form); err != nil {
		return err
	}

	p, err := popup.Init(doc, flagConversation, windowSelector, formSelector, client,
		popup.WithInterval(flagInterval), popup.WithLogger(logger))
	if err != nil {
		return err
	}

	if flagOnce {
		return p.Poll(ctx)
	}

	// prime the cursor and the csrftoken cookie before the first send
	_ = p.Poll(ctx)
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	go func() {
		defer cancel()
		readLines(ctx, cmd.InOrStdin(), form, logger)
	}()

	<-ctx.Done()
	return nil
}

func listConversations(ctx context.Context, out io.Writer, client *chatapi.Client) error {
	convs, err := client.ListConversations(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONVERSATION\tMESSAGES\tLAST ACTIVITY")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.ID, c.MessageCount, c.UpdatedAt)
	}
	return tw.Flush()
}

// readLines submits every non-empty stdin line. Failed sends are already
// logged by the popup.
func readLines(ctx context.Context, in io.Reader, form *page.Form, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		form.Set(page.BodyField, line)
		_ = form.Submit(ctx)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin closed", "error", err)
	}
}
