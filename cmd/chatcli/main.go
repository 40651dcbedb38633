package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"expense-coach/internal/chat"
	"expense-coach/internal/completion"
	"expense-coach/internal/config"
	"expense-coach/internal/logger"
	"expense-coach/internal/storage"

	"golang.org/x/term"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("chatcli", flag.ContinueOnError)
	fs.SetOutput(stderr)

	userID := fs.String("user", "", "User ID the conversation belongs to")
	messageFlag := fs.String("message", "", "Message to send (optional, will prompt if omitted)")
	dbPath := fs.String("db", "", "Path to a SQLite database (overrides the configured store)")
	endpoint := fs.String("endpoint", cfg.Completion.Endpoint, "Chat completion endpoint")
	model := fs.String("model", cfg.Completion.Model, "Model name")
	apiKey := fs.String("api-key", cfg.Completion.APIKey, "Completion API key")
	verbose := fs.Bool("v", false, "Log pipeline activity to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" {
		fmt.Fprintln(stdout, "Usage: chatcli -user <id> [-message <text>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	message := *messageFlag
	if message == "" {
		message, err = readMessage(stdin, stdout)
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
	}

	driver, dsn := cfg.Database.Driver, cfg.Database.DSN
	if *dbPath != "" {
		driver, dsn = "sqlite", *dbPath
	}
	store, err := storage.Open(ctx, driver, dsn, cfg.Database.Name)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	log := logger.Get()
	if *verbose {
		if log, err = logger.New(true, logger.DebugLevel); err != nil {
			return err
		}
		defer log.Sync()
	}

	client := completion.NewClient(*endpoint, *model, *apiKey, completion.WithLogger(log))
	res, err := chat.NewService(store, client, log).HandleMessage(ctx, *userID, message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return fmt.Errorf("message cannot be empty")
		}
		return err
	}

	fmt.Fprintln(stdout, res.Reply)
	for _, w := range res.Writes {
		if w.Err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", w.Err)
		}
	}
	return nil
}

func readMessage(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stdout, "You: ")
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
