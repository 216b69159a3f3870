// Ollama OnDemand - a chat console in front of a locally-running Ollama
// server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lsuhpchelp/ollamaondemand/internal/catalog"
	"github.com/lsuhpchelp/ollamaondemand/internal/cli"
	"github.com/lsuhpchelp/ollamaondemand/internal/config"
	"github.com/lsuhpchelp/ollamaondemand/internal/generate"
	"github.com/lsuhpchelp/ollamaondemand/internal/index"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
	"github.com/lsuhpchelp/ollamaondemand/internal/storage"
	uichat "github.com/lsuhpchelp/ollamaondemand/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	opts, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(2)
	}
	if opts.Help {
		fmt.Println(cli.Usage)
		return
	}
	if opts.Version {
		fmt.Printf("ollamaondemand %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(opts *cli.Options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyOverrides(cfg, opts)

	if cfg.WorkDir == "" {
		return fmt.Errorf("no usable work directory, set --workdir")
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	setupLogging(cfg)
	seedConfig(cfg)

	client := ollama.NewClient(&ollama.ClientConfig{
		BaseURL:  cfg.BaseURL(),
		ModelDir: cfg.ModelDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	err = client.EnsureRunning(ctx)
	cancel()
	if err != nil {
		if ollama.IsNotRunning(err) {
			return fmt.Errorf("Ollama is not running and could not be started: %w", err)
		}
		return err
	}

	persister := storage.New(cfg.WorkDir)
	store := session.NewStore(persister)
	defer store.Flush()

	if removed := persister.CleanupCache(); removed > 0 {
		log.Printf("removed %d orphaned cache entries", removed)
	}

	var idx *index.Index
	if opened, err := index.Open(cfg.WorkDir); err != nil {
		log.Printf("history index unavailable: %v", err)
	} else {
		idx = opened
		defer idx.Close()
		if err := idx.Rebuild(store.Records()); err != nil {
			log.Printf("history index rebuild failed: %v", err)
		}
	}

	cat := catalog.Load(cfg.WorkDir)
	go refreshCatalog(cfg.WorkDir)

	settings := config.LoadSettings(cfg.WorkDir)
	if opts.Model != "" {
		settings.SelectedModel = opts.Model
	}

	gen := generate.New(client)

	if opts.Serial || !cli.IsTTY() {
		return cli.Run(cli.Deps{
			Store:     store,
			Client:    client,
			Generator: gen,
			Index:     idx,
			Catalog:   cat,
			Settings:  settings,
			Config:    cfg,
		})
	}
	return uichat.Run(uichat.Deps{
		Store:     store,
		Client:    client,
		Generator: gen,
		Index:     idx,
		Catalog:   cat,
		Settings:  settings,
		Config:    cfg,
	})
}

// applyOverrides layers command-line flags over the loaded configuration.
func applyOverrides(cfg *config.Config, opts *cli.Options) {
	if opts.WorkDir != "" {
		cfg.WorkDir = opts.WorkDir
	}
	if opts.Host != "" {
		cfg.OllamaHost = strings.TrimPrefix(opts.Host, "http://")
	}
	if opts.ModelDir != "" {
		cfg.ModelDir = opts.ModelDir
	}
	if opts.Model != "" {
		cfg.DefaultModel = opts.Model
	}
	if opts.Debug {
		cfg.Debug = true
	}
}

// setupLogging routes the standard logger to a file in the work directory.
// The TUI owns the terminal, so stderr chatter would corrupt the screen.
func setupLogging(cfg *config.Config) {
	if !cfg.Debug {
		log.SetOutput(io.Discard)
		return
	}
	f, err := os.OpenFile(filepath.Join(cfg.WorkDir, "debug.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(f)
}

// seedConfig writes an editable config.toml on the first run. Best-effort:
// the program works fine from defaults and environment alone.
func seedConfig(cfg *config.Config) {
	path := config.Path()
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := cfg.Save(); err != nil {
		log.Printf("could not write %s: %v", path, err)
	}
}

// refreshCatalog re-scrapes the registry in the background so the next run
// sees a fresh model list. Failures keep the cached copy.
func refreshCatalog(workdir string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fresh, err := catalog.NewScraper().FetchAll(ctx)
	if err != nil || len(fresh) == 0 {
		return
	}
	catalog.Save(workdir, fresh)
}
