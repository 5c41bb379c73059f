package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/actuator"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/config"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/mock"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/monitor"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/ws"
)

const maxWSConnections = 32

func main() {
	mockMode := flag.Bool("mock", false, "Use simulated game telemetry instead of the sniffer")
	dryRun := flag.Bool("dry-run", false, "Log scene switches and actions instead of sending them")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	watch := flag.Bool("watch", true, "Reload the config file when it changes")
	flag.Parse()

	overrides := func(cfg *config.Config) {
		if *port > 0 {
			cfg.Server.Port = *port
		}
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	overrides(cfg)

	var source monitor.Source
	if *mockMode {
		log.Println("Starting in mock mode")
		source = mock.NewGame(cfg.Monitor.PollInterval.Seconds(), 1)
	} else {
		sniffer := telemetry.NewHTTPSource(cfg.Sniffer.Host, cfg.Sniffer.Port, cfg.Sniffer.Timeout)
		log.Printf("Reading telemetry from %s", sniffer.URL())
		source = sniffer
	}

	var act monitor.Actuator
	if *dryRun {
		log.Println("Dry run: no commands leave the process")
		act = actuator.NewDryRun(cfg.Scenes.Menu)
	} else {
		composite := &actuator.Composite{
			Scenes:  actuator.NewOBS(cfg.OBS.URL),
			Actions: actuator.NewStreamerBot(cfg.StreamerBot.URL),
		}
		defer composite.Close()
		act = composite
	}

	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, cfg.Monitor.BroadcastThrottle, cfg.Monitor.SnapshotInterval, maxWSConnections)
	defer broadcaster.Stop()

	mon := monitor.NewMonitor(cfg, store, broadcaster, source, act)

	server := ws.NewServer(store, broadcaster)
	server.SetHealthHook(mon.Health)
	server.SetResetHook(mon.Reset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	current := cfg
	reload := func(next *config.Config) {
		overrides(next)
		for _, change := range config.Diff(current, next) {
			log.Printf("[config] %s", change)
		}
		if config.NeedsRestart(current, next) {
			log.Println("[config] server, sniffer or actuator settings changed; restart to apply them")
		}
		current = next
		mon.SetConfig(next)
	}

	if *watch {
		w, err := config.NewWatcher(*configPath)
		if err != nil {
			log.Printf("[config] not watching %s: %v", *configPath, err)
		} else {
			defer w.Close()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case next, ok := <-w.Updates:
						if !ok {
							return
						}
						reload(next)
					case err, ok := <-w.Errors:
						if !ok {
							return
						}
						log.Printf("[config] reload failed, keeping current config: %v", err)
					}
				}
			}()
		}
	}

	monDone := make(chan struct{})
	go func() {
		mon.Start(ctx)
		close(monDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Routes()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	<-monDone
}
