package main

import (
	"context"
	"errors"
	"os/user"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"quill/internal/audit"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/notify"
	"quill/internal/pipeline"
	"quill/internal/portal"
	"quill/internal/schema"
	"quill/internal/session"
	"quill/internal/submission"
)

type commandContext struct {
	configFlag *string
	actorFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, actorFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		actorFlag:  actorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// actor resolves the identity recorded in audit events for CLI mutations.
func (c *commandContext) actor() string {
	if c.actorFlag != nil {
		if trimmed := strings.TrimSpace(*c.actorFlag); trimmed != "" {
			return trimmed
		}
	}
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	return "cli"
}

// environment bundles the wired pipeline for one command invocation.
type environment struct {
	cfg   *config.Config
	coord *pipeline.Coordinator
}

// withPipeline builds the full pipeline against the configured store, runs
// fn, and closes the store afterward. CLI mutations log to the daemon's log
// file so the audit trail stays in one place.
func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(ctx context.Context, env *environment) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	registry, err := schema.LoadFile(cfg.Paths.SchemaPath)
	if err != nil {
		return err
	}
	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := portal.NewHTTPClient(cfg)
	if err != nil {
		// Portal-less configs still support every local operation;
		// submit-side commands check requirePortal first.
		client = unconfiguredPortal{}
	}
	notifier := notify.NewService(cfg)
	emitter := audit.NewLogEmitter(logger)
	gateway := submission.NewGateway(cfg, store, client, notifier, emitter, logger)
	coord := pipeline.New(cfg, store, registry, gateway, emitter, notifier, logger)

	return fn(cmd.Context(), &environment{cfg: cfg, coord: coord})
}

func (c *commandContext) requirePortal() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Portal.BaseURL) == "" {
		return errors.New("portal.base_url is not configured; set it before submitting")
	}
	return nil
}

type unconfiguredPortal struct{}

func (unconfiguredPortal) Submit(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
	return portal.SubmitResult{}, errors.New("portal.base_url is not configured")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
