package main

import (
	"context"
	"net/http"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"

	"github.com/gamedex/catalog-cache/internal/pkg/application/feeds"
	"github.com/gamedex/catalog-cache/internal/pkg/infrastructure/router"
	api "github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/client"
)

const (
	appName string = "catalog-cache"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	configPath := env.GetVariableOrDefault(ctx, "FEEDS_CONFIG_FILE", "/opt/catalog-cache/config/feeds.yaml")
	policiesPath := env.GetVariableOrDefault(ctx, "AUTHZ_POLICIES_FILE", "/opt/catalog-cache/config/authz.rego")
	port := env.GetVariableOrDefault(ctx, "SERVICE_PORT", "8080")

	configFile, err := os.Open(configPath)
	if err != nil {
		log.Error("failed to open feeds configuration", "path", configPath, "err", err.Error())
		os.Exit(1)
	}

	cfg, err := feeds.LoadConfiguration(configFile)
	configFile.Close()
	if err != nil {
		log.Error("failed to load feeds configuration", "err", err.Error())
		os.Exit(1)
	}

	sourceClient := client.New(cfg.Source.Endpoint, client.Debug(cfg.Source.Debug))

	app, err := feeds.New(ctx, *cfg, sourceClient)
	if err != nil {
		log.Error("failed to create feed engine", "err", err.Error())
		os.Exit(1)
	}

	if err = app.Start(); err != nil {
		log.Error("failed to start feed engine", "err", err.Error())
		os.Exit(1)
	}
	defer app.Stop()

	policies, err := os.Open(policiesPath)
	if err != nil {
		log.Error("failed to open authz policies", "path", policiesPath, "err", err.Error())
		os.Exit(1)
	}
	defer policies.Close()

	r := router.New(appName)

	if err = api.RegisterHandlers(ctx, r, policies, app); err != nil {
		log.Error("failed to register handlers", "err", err.Error())
		os.Exit(1)
	}

	log.Info("starting to listen for connections", "port", port)

	err = http.ListenAndServe(":"+port, r)
	if err != nil {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}
