package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/PabloGalante/tutorchat/internal/adapters/relayclient"
	filestore "github.com/PabloGalante/tutorchat/internal/adapters/storage/file"
	firestorestore "github.com/PabloGalante/tutorchat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/tutorchat/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/tutorchat/internal/adapters/storage/redis"
	"github.com/PabloGalante/tutorchat/internal/app/session"
	"github.com/PabloGalante/tutorchat/internal/config"
	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const botName = "Thunda"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tutorchat:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tutorchat-cli", pflag.ExitOnError)
	cfgPath := flags.String("config", "", "path to a YAML config file")
	relayURL := flags.String("relay", "", "relay base URL (overrides client.relay_url)")
	name := flags.StringP("name", "n", "", "your display name")
	course := flags.String("course", "", "course name sent as context")
	page := flags.String("page", "", "page URL sent as context")
	backend := flags.String("store", "", "history store: memory|file|redis|firestore")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	overrideString(&cfg.Client.RelayURL, *relayURL)
	overrideString(&cfg.Client.UserName, *name)
	overrideString(&cfg.Client.CourseName, *course)
	overrideString(&cfg.Client.PageURL, *page)
	overrideString(&cfg.Storage.Backend, *backend)
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logs go to stderr so they never interleave with the conversation.
	observability.SetOutput(os.Stderr)
	observability.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	relay, err := relayclient.New(relayclient.Options{
		BaseURL: cfg.Client.RelayURL,
		Origin:  cfg.Client.Origin,
		Timeout: cfg.Client.Timeout,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	client := session.New(ctx, session.Options{
		Store:      store,
		Relay:      relay,
		StorageKey: cfg.Client.StorageKey,
		MaxHistory: cfg.Client.MaxHistory,
		Visitor: session.Visitor{
			Name:       cfg.Client.UserName,
			CourseName: cfg.Client.CourseName,
			PageURL:    cfg.Client.PageURL,
		},
	})

	for _, m := range client.History() {
		printMessage(out, m)
	}
	client.Subscribe(render(out))

	fmt.Fprintln(out, "(type /reset to start over, /quit to leave)")
	return repl(ctx, client, os.Stdin, out)
}

func repl(ctx context.Context, client *session.Client, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/reset":
				client.Reset(ctx)
			default:
				client.Send(ctx, line)
			}
		}
	}
}

// render prints bot messages and the typing indicator. User messages are
// already on screen as typed.
func render(out io.Writer) session.Observer {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventBusy:
			if ev.Busy {
				fmt.Fprintf(out, "%s is typing...\n", botName)
			}
		case session.EventMessage:
			if ev.Message.Role == domain.RoleBot {
				printMessage(out, ev.Message)
			}
		case session.EventReset:
			fmt.Fprintln(out, "-- conversation cleared --")
		}
	}
}

func printMessage(out io.Writer, m domain.Message) {
	who := "You"
	if m.Role == domain.RoleBot {
		who = botName
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), who, m.Content)
}

func newStore(ctx context.Context, cfg *config.Config) (domain.KVStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memstore.NewStore(), func() {}, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.NewStore(client, cfg.Storage.TTL), func() { _ = client.Close() }, nil

	case "firestore":
		fsStore, err := firestorestore.NewStore(ctx, cfg.Storage.FirestoreProject, cfg.Storage.FirestoreCollection)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing Firestore store: %w", err)
		}
		return fsStore, func() { _ = fsStore.Close() }, nil

	default:
		fs, err := filestore.NewStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
