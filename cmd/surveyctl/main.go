package main

import (
	"context"
	"os"
	"os/signal"

	"dqsurvey/internal/cli"
	"dqsurvey/internal/shared/telemetry"
)

func main() {
	telemetry.SetOutput(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx)
	stop()
	telemetry.Sync()
	os.Exit(code)
}
