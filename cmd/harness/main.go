package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/workload-harness/internal/app"
	"github.com/yungbote/workload-harness/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize harness: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		fmt.Printf("run failed: %v\n", err)
		os.Exit(1)
	}
}
