// chat-llama - A terminal client for streaming LLM chat with web search.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/omnomburp/chat-llama/internal/cli"
	"github.com/omnomburp/chat-llama/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (default ~/.chat-llama/config.toml)")
	serverURL := flag.String("server", "", "chat server URL (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chat-llama %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-llama: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "chat-llama: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "chat-llama: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
