package main

import (
	"context"
	"log"

	"github.com/melenae/task-tracker-app/internal/app/bootstrap"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "configs/default.yaml", "path to the service config file")
	pflag.Parse()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap worker runtime: %v", err)
	}
	if err := runtime.RunWorker(ctx); err != nil {
		log.Fatalf("run worker: %v", err)
	}
}
