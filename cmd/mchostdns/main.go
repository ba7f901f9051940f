// mchostdns publishes ACME DNS-01 challenge records through the McHost
// control panel. It is meant to be used as a certbot manual auth and
// cleanup hook:
//
//	certbot certonly --manual --preferred-challenges dns \
//	  --manual-auth-hook "mchostdns auth" \
//	  --manual-cleanup-hook "mchostdns cleanup" -d example.com
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := App().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
