// Package main is the entry point for the ReelForge API server.
//
// Usage:
//
//	reelforge-api              # same as "serve"
//	reelforge-api serve
//	reelforge-api migrate up|down|version
//	reelforge-api pricing
//	reelforge-api token --user user_123 [--admin]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
