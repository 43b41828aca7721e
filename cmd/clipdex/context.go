package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"clipdex/internal/config"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/matcher"
	"clipdex/internal/media"
	"clipdex/internal/organizer"
	"clipdex/internal/queue"
	"clipdex/internal/registry"
	"clipdex/internal/scanner"
	"clipdex/internal/transcriber"
	"clipdex/internal/worker"
)

// commandContext lazily builds configuration and services shared by commands.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	logger  *slog.Logger

	queueOnce  sync.Once
	queueStore *queue.Store
	queueErr   error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

func (c *commandContext) ensureLogger() *slog.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) inventoryStore() (*inventory.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return inventory.NewStore(cfg.InventoryPath()), nil
}

func (c *commandContext) queueStoreValue() (*queue.Store, error) {
	c.queueOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.queueErr = err
			return
		}
		c.queueStore, c.queueErr = queue.Open(cfg.QueueDBPath())
	})
	return c.queueStore, c.queueErr
}

func (c *commandContext) registryValue() (*registry.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return registry.New(cfg.Paths.TranscriptsDir, cfg.Categories, c.ensureLogger()), nil
}

// newScanner assembles the scanner and its matcher. A missing transcription
// stack degrades to path-only matching.
func (c *commandContext) newScanner() (*scanner.Scanner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.inventoryStore()
	if err != nil {
		return nil, err
	}
	reg, err := c.registryValue()
	if err != nil {
		return nil, err
	}
	logger := c.ensureLogger()

	var tr transcriber.Transcriber
	if whisper, err := transcriber.NewFromConfig(cfg, logger); err == nil {
		sampleTimeout := time.Duration(cfg.Transcriber.SampleTimeoutSeconds) * time.Second
		tr = transcriber.WithTimeout(whisper, sampleTimeout)
	}
	m := matcher.New(reg, tr, cfg.Matching, logger)
	extractor := media.NewExtractor(cfg.Transcriber.FFprobeBinary, logger)
	return scanner.New(cfg, store, extractor, m, reg, logger), nil
}

func (c *commandContext) newOrganizer() (*organizer.Organizer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.inventoryStore()
	if err != nil {
		return nil, err
	}
	return organizer.New(cfg, store, c.ensureLogger()), nil
}

func (c *commandContext) newWorker() (*worker.Worker, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.inventoryStore()
	if err != nil {
		return nil, err
	}
	q, err := c.queueStoreValue()
	if err != nil {
		return nil, err
	}
	reg, err := c.registryValue()
	if err != nil {
		return nil, err
	}
	logger := c.ensureLogger()
	tr, err := transcriber.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return worker.New(cfg, store, q, reg, tr, logger), nil
}

func (c *commandContext) close() {
	if c.queueStore != nil {
		_ = c.queueStore.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for cur := cmd; cur != nil; cur = cur.Parent() {
		if cur.Annotations != nil && cur.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
