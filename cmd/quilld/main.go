package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"quill/internal/audit"
	"quill/internal/config"
	"quill/internal/daemon"
	"quill/internal/logging"
	"quill/internal/notify"
	"quill/internal/pipeline"
	"quill/internal/portal"
	"quill/internal/schema"
	"quill/internal/session"
	"quill/internal/submission"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	registry, err := schema.LoadFile(cfg.Paths.SchemaPath)
	if err != nil {
		log.Fatalf("load schema: %v", err)
	}

	store, err := session.Open(cfg)
	if err != nil {
		log.Fatalf("open session store: %v", err)
	}

	client, err := portal.NewHTTPClient(cfg)
	if err != nil {
		log.Fatalf("init portal client: %v", err)
	}

	notifier := notify.NewService(cfg)
	emitter := audit.NewLogEmitter(logger)
	gateway := submission.NewGateway(cfg, store, client, notifier, emitter, logger)
	coord := pipeline.New(cfg, store, registry, gateway, emitter, notifier, logger)

	d, err := daemon.New(cfg, store, coord, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("quilld shutting down")
}
