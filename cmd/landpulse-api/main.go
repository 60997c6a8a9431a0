// @title         landpulse API
// @version       0.1.0
// @description   Monthly NDVI and NDWI animations for named localities

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"landpulse/internal/adapters/imagery/earthengine"
	"landpulse/internal/core/locality"
	"landpulse/internal/platform/config"
	"landpulse/internal/platform/logger"
	phttp "landpulse/internal/platform/net/http"
	"landpulse/internal/platform/store"

	"landpulse/internal/services/api"
)

func main() {
	// env files first so everything below sees them
	loaded, dotErr := config.LoadDotenv()

	root := config.New()
	apiCfg := root.Prefix("LANDPULSE_API_")
	lpCfg := root.Prefix("LANDPULSE_")
	eeCfg := root.Prefix("EARTHENGINE_")

	logger.Init(logger.FromEnv())
	l := logger.Get()
	if dotErr != nil {
		l.Warn().Err(dotErr).Msg("dotenv load failed")
	}
	if len(loaded) > 0 {
		l.Debug().Strs("files", loaded).Msg("dotenv loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a missing or malformed feature file is fatal
	locs, err := locality.Load(
		lpCfg.MustString("GEOJSON_PATH"),
		locality.WithNameProperty(lpCfg.MayString("NAME_PROPERTY", locality.DefaultNameProperty)),
	)
	if err != nil {
		l.Fatal().Err(err).Msg("load localities")
	}
	l.Info().Int("count", locs.Len()).Msg("localities loaded")

	ee, err := earthengine.New(ctx, earthengine.Config{
		Project:         eeCfg.MustString("PROJECT"),
		CredentialsFile: eeCfg.MayString("CREDENTIALS_FILE", ""),
		Endpoint:        eeCfg.MayString("ENDPOINT", ""),
		Collection:      eeCfg.MayString("COLLECTION", ""),
	})
	if err != nil {
		l.Fatal().Err(err).Msg("earthengine client")
	}

	// postgres and clickhouse are both optional
	st, err := store.Open(ctx,
		store.ConfigFromEnv(root.Prefix("SERVICE_PGSQL_"), root.Prefix("SERVICE_CLICKHOUSE_"), "api"),
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads LANDPULSE_API_PORT)
	srv := phttp.NewServer(apiCfg)

	if err := api.Mount(ctx, srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Logger:         l,
		Imagery:        ee,
		Localities:     locs,
		EnableSwagger:  apiCfg.MayBool("ENABLE_SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("ENABLE_PROFILER", false),
	}); err != nil {
		l.Fatal().Err(err).Msg("mount api")
	}

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
