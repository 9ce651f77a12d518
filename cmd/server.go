package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mathedit/internal/content"
	"github.com/ziadkadry99/mathedit/internal/db"
	"github.com/ziadkadry99/mathedit/internal/dialog"
	"github.com/ziadkadry99/mathedit/internal/editorui"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/live"
	"github.com/ziadkadry99/mathedit/internal/markdown"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/server"
	"github.com/ziadkadry99/mathedit/internal/session"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the editor server",
	Long:  `Starts the mathedit HTTP server: the browser editor page, the content and session APIs, and the live render websocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		mathSettings, err := cfg.MathSettings()
		if err != nil {
			return err
		}

		database, err := db.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger()
		hub := live.NewHub(logger)
		defer hub.Close()

		// Engines load in the background; until they are ready the
		// renderer emits placeholders.
		caps := engine.NewCapabilities()
		loaded := caps.Load(ctx, engine.LoadMathML, hub.Loader())
		go func() {
			<-loaded
			if err := caps.Err(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}()

		srv := server.New(server.Config{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, database)

		settings := mathrender.NewSettingsHolder(mathSettings)
		store := content.NewStore(database)
		manager := session.NewManager(caps, settings, store, dialog.Options{
			RerenderDelay: cfg.RerenderDelay(),
			Logger:        logger,
		}, logger)
		defer manager.CloseAll()
		go manager.ExpireIdle(ctx, cfg.SessionIdle(), time.Minute)

		registerAllRoutes(srv, hub, caps, settings, store, manager)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "mathedit server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Output format: %s\n", mathSettings.OutputFormat)

		if err := srv.Start(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// registerAllRoutes wires up every feature's routes.
func registerAllRoutes(srv *server.Server, hub *live.Hub, caps *engine.Capabilities, settings *mathrender.SettingsHolder, store *content.Store, manager *session.Manager) {
	api := srv.API()

	// Editor page, format selector, one-off renders.
	renderer := mathrender.NewRenderer(mathid.NewAllocator(mathid.NewRegistry(), nil), caps, nil)
	editorui.New(settings, renderer).RegisterRoutes(api)

	// Stored documents and markdown import.
	markdown.RegisterRoutes(api, markdown.NewConverter(), store)
	content.RegisterRoutes(api, store)

	// Editing sessions.
	session.RegisterRoutes(api, manager)

	// Live render events; no request timeout on the websocket.
	hub.RegisterRoutes(srv.Router())
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
