package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"bbsgatewayd/internal/activity"
	"bbsgatewayd/internal/anthropic"
	"bbsgatewayd/internal/config"
	"bbsgatewayd/internal/directory"
	"bbsgatewayd/internal/dispatch"
	"bbsgatewayd/internal/filestore"
	"bbsgatewayd/internal/link"
	"bbsgatewayd/internal/radio"
	"bbsgatewayd/internal/ratelimit"
	"bbsgatewayd/internal/session"
	"bbsgatewayd/internal/store"
	"bbsgatewayd/internal/telnet"
	"bbsgatewayd/internal/tools"
	"bbsgatewayd/internal/turnengine"
)

func main() {
	// Check for CLI subcommands before parsing flags.
	if len(os.Args) > 1 {
		cliDB := "data/gateway.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	configPath := flag.String("config", "", "path to config.yaml (falls back to $CONFIG_PATH, then config/config.yaml)")
	telnetOnly := flag.Bool("telnet-only", false, "run with telnet only, skipping the Direwolf/KISS connection entirely")
	kissOnly := flag.Bool("kiss-only", false, "run with AX.25/KISS only, ignoring telnet configuration")
	telnetHost := flag.String("telnet-host", "", "override the configured telnet listen host")
	telnetPort := flag.Int("telnet-port", 0, "override the configured telnet listen port (0 = use config)")
	direwolfHost := flag.String("direwolf-host", "", "override the configured Direwolf host")
	direwolfPort := flag.Int("direwolf-port", 0, "override the configured Direwolf port (0 = use config)")
	flag.Parse()

	if *telnetOnly && *kissOnly {
		fmt.Fprintln(os.Stderr, "--telnet-only and --kiss-only are mutually exclusive")
		os.Exit(1)
	}

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	configureLogging(cfg.Logging)
	if *telnetHost != "" {
		cfg.Telnet.Host = *telnetHost
	}
	if *telnetPort != 0 {
		cfg.Telnet.Port = *telnetPort
	}
	if *direwolfHost != "" {
		cfg.Direwolf.Host = *direwolfHost
	}
	if *direwolfPort != 0 {
		cfg.Direwolf.Port = *direwolfPort
	}

	enableKiss := !*telnetOnly
	enableTelnet := !*kissOnly && (cfg.Telnet.Enabled || *telnetOnly)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("[store] create data dir: %v", err)
	}
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()
	seedDefaults(st, cfg)

	sessionTimeout := time.Duration(cfg.Sessions.Timeout) * time.Second
	sessions := session.NewStore(cfg.Sessions.MaxContextMessages)
	limiter := ratelimit.New(st, cfg.RateLimits.QueriesPerHour, cfg.RateLimits.QueriesPerDay, cfg.RateLimits.Enabled)

	var dir *directory.Lookup
	if cfg.QRZEnabled() {
		dir = directory.New(cfg.QRZUsername, cfg.QRZPassword, cfg.QRZAPIKey)
	} else {
		dir = directory.New("", "", "")
	}

	filesDir := filepath.Join(filepath.Dir(cfg.Database.Path), "files")
	files, err := filestore.New(filesDir, st)
	if err != nil {
		log.Fatalf("[filestore] %v", err)
	}

	act := activity.New(200)

	// No hamlib/CAT binding is wired up (out of scope per spec); the
	// null controller is always used, keyed off at startup for a known
	// safe state.
	pttController := radio.NewNullController()
	if err := pttController.Set(false); err != nil {
		log.Printf("[radio] %v", err)
	}

	tn := telnet.NewServer(socketIdleTimeout)
	lk := link.NewManager(nil, socketIdleTimeout)

	client := anthropic.New(cfg.AnthropicAPIKey)
	engineTools := buildTools(dir, st)
	engine := turnengine.New(client, cfg.Claude.Model, cfg.Claude.SystemPrompt, cfg.Claude.MaxTokens, cfg.Claude.Temperature, engineTools, log.Default())

	logger := log.New(os.Stdout, "", log.LstdFlags)
	d := dispatch.New(cfg, st, sessions, limiter, engine, dir, files, act, tn, lk, logger)
	engineTools = append(engineTools, tools.NewBbsSessionTool(d.Control()))
	engine = turnengine.New(client, cfg.Claude.Model, cfg.Claude.SystemPrompt, cfg.Claude.MaxTokens, cfg.Claude.Temperature, engineTools, log.Default())
	d.Engine = engine

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[main] shutting down...")
		cancel()
	}()

	if enableKiss {
		tnc := NewTNC(cfg.Direwolf.Host, cfg.Direwolf.Port, lk)
		// KISS connect failure is fatal outside telnet-only mode: without
		// it the gateway has no AX.25 transport at all.
		if err := tnc.Dial(); err != nil {
			log.Fatalf("[tnc] %v", err)
		}
		go func() {
			if err := tnc.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[tnc] %v", err)
			}
		}()
	} else {
		log.Println("[main] KISS/AX.25 disabled (--telnet-only)")
	}

	if enableTelnet {
		addr := fmt.Sprintf("%s:%d", cfg.Telnet.Host, cfg.Telnet.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			if *telnetOnly {
				log.Fatalf("[telnet] %v (telnet-only mode requires telnet)", err)
			}
			// Telnet start failure is otherwise non-fatal: the gateway
			// keeps running on AX.25 alone.
			log.Printf("[telnet] failed to start, continuing without it: %v", err)
		} else {
			go func() {
				if err := tn.Serve(ctx, ln); err != nil && ctx.Err() == nil {
					log.Printf("[telnet] %v", err)
				}
			}()
		}
	} else {
		log.Println("[main] telnet disabled")
	}

	go RunMetrics(ctx, sessions, tn, lk, metricsInterval)
	go runSweeps(ctx, sessions, tn, lk, sessionTimeout)
	go runMaintenance(ctx, st)

	<-ctx.Done()
	log.Println("[main] stopped")
}

func buildTools(dir *directory.Lookup, st *store.Store) []turnengine.Tool {
	return []turnengine.Tool{
		tools.NewQRZTool(dir),
		tools.NewFileTool(st),
		tools.NewMailTool(st),
		tools.NewChatTool(st),
		tools.NewPotaSpotsTool(),
		tools.NewDxClusterTool(),
		tools.NewBandConditionsTool(),
		tools.NewWebSearchTool(),
	}
}

// seedDefaults writes the station callsign setting on first run.
func seedDefaults(st *store.Store, cfg *config.Config) {
	if _, ok, err := st.GetSetting("station_callsign"); err == nil && !ok {
		if err := st.SetSetting("station_callsign", cfg.Station.Callsign); err != nil {
			log.Printf("[store] seed station_callsign: %v", err)
		}
	}
}
