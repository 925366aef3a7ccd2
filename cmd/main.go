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
	"strings"
	"syscall"

	"eventai/internal/config"
	"eventai/internal/generator"
	"eventai/internal/google"
	"eventai/internal/handoff"
	"eventai/internal/icloud"
	"eventai/internal/models"
	"eventai/internal/session"
	"eventai/internal/tui"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "eventai",
		Usage: "Turn an event description into a calendar entry using an AI model.",
		Commands: []*cli.Command{
			generateCommand(),
			addCommand(),
			tuiCommand(),
			authCommand(),
			calendarsCommand(),
		},
	}
}

func publishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "no-open", Usage: "Write the hand-off file but do not open it."},
		&cli.BoolFlag{Name: "dry-run", Usage: "Log the open command instead of running it."},
		&cli.StringSliceFlag{Name: "publish", Usage: "Also publish to remote calendars: caldav, google."},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate an ICS event from a description and hand it to the calendar application.",
		ArgsUsage: "DESCRIPTION...",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "reminder", Aliases: []string{"r"}, Usage: "Reminder, e.g. '15 minutes before'. Empty means none."},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Path to an image describing the event."},
		}, publishFlags()...),
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			s, err := newSession(c, cfg, logger)
			if err != nil {
				return err
			}

			req := models.GenerationRequest{
				EventText:    strings.Join(c.Args().Slice(), " "),
				ReminderText: c.String("reminder"),
				ImagePath:    c.String("image"),
			}
			task, err := s.Generate(c.Context, req)
			if err != nil {
				return err
			}
			res := task.Result()
			if !res.OK() {
				return fmt.Errorf("could not generate event: %s", res.Message())
			}

			fmt.Fprintln(c.App.Writer, res.ICSText)
			return handOff(c, s, logger)
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Hand an existing (possibly edited) ICS text to the calendar application.",
		ArgsUsage: "[FILE|-]",
		Flags:     publishFlags(),
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			s, err := newSession(c, cfg, logger)
			if err != nil {
				return err
			}

			var data []byte
			switch name := c.Args().First(); name {
			case "", "-":
				data, err = io.ReadAll(c.App.Reader)
			default:
				data, err = os.ReadFile(name)
			}
			if err != nil {
				return fmt.Errorf("failed to read ICS text: %w", err)
			}
			s.SetText(string(data))
			return handOff(c, s, logger)
		},
	}
}

func tuiCommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Open the interactive terminal interface.",
		Flags: publishFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(".env")
			if err != nil {
				return err
			}
			// The terminal belongs to the UI; logs go to LOG_FILE or nowhere.
			logOut := io.Discard
			if cfg.LogFile != "" {
				f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logger := setupLogger(logOut, cfg.LogLevel)
			s, err := newSession(c, cfg, logger)
			if err != nil {
				return err
			}
			return tui.Run(c.Context, s)
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account so events can be published to Google Calendar.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.GoogleClientID, cfg.GoogleClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(c.App.Reader)
			authCode, err := reader.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(authCode) != "") {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			authCode = strings.TrimSpace(authCode)
			if authCode == "" {
				return errors.New("no authorization code entered")
			}

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			tokenFile := google.TokenFile(cfg.GoogleAccount)
			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the Google calendars events can be published to.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			client, err := google.NewClient(c.Context, logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleAccount, cfg.GoogleCalendarID, nil)
			if err != nil {
				return fmt.Errorf("failed to create google client: %w", err)
			}
			items, err := client.DiscoverGoogleCalendars(c.Context)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", item.Id, item.Summary)
			}
			return nil
		},
	}
}

// handOff commits the session text locally, then publishes. The text has
// already been shown, so nothing is lost on failure.
func handOff(c *cli.Context, s *session.Session, logger *slog.Logger) error {
	if err := s.AddToCalendar(c.Context); err != nil {
		if errors.Is(err, handoff.ErrUnsupportedPlatform) {
			logger.Warn("Cannot open the calendar application on this platform; the ICS text is printed above.")
		}
		return err
	}
	return nil
}

func loadConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	// Load .env file first, but don't error if it doesn't exist.
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(logOut, cfg.LogLevel), nil
}

// newSession wires the generator, the local hand-off and any publishers
// selected with --publish.
func newSession(c *cli.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tmpl, err := cfg.PromptTemplate()
	if err != nil {
		return nil, err
	}

	var gen session.Generator
	if c.Command.Name != "add" {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
		gen = generator.New(logger, generator.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), generator.Options{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Template:    tmpl,
			Location:    loc,
			Timeout:     cfg.RequestTimeout,
		})
	}

	h, err := handoff.New(logger,
		handoff.WithPath(cfg.HandoffPath),
		handoff.WithDryRun(c.Bool("dry-run")),
		handoff.WithoutOpen(c.Bool("no-open")),
	)
	if err != nil {
		return nil, err
	}

	var publishers []session.Publisher
	for _, name := range c.StringSlice("publish") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "caldav", "icloud":
			if !cfg.CalDAVEnabled() {
				return nil, fmt.Errorf("caldav publishing needs ICLOUD_USERNAME, ICLOUD_APP_SPECIFIC_PASSWORD and ICLOUD_CALENDAR_NAME")
			}
			client, err := icloud.NewClient(c.Context, logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)
			if err != nil {
				return nil, fmt.Errorf("failed to create caldav client: %w", err)
			}
			publishers = append(publishers, client)
		case "google":
			client, err := google.NewClient(c.Context, logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleAccount, cfg.GoogleCalendarID, loc)
			if err != nil {
				return nil, fmt.Errorf("failed to create google client: %w", err)
			}
			publishers = append(publishers, client)
		default:
			return nil, fmt.Errorf("unknown publish target '%s'", name)
		}
	}

	return session.New(logger, gen, h, publishers...), nil
}

func setupLogger(out io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
}
