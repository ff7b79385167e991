package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"justapengu.in/strategyd/internal/raceengine"
	"justapengu.in/strategyd/pkg/laps"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.Parse()
}

type Config struct {
	HTTPPort      uint16                         `json:"http_port" yaml:"http_port"`
	Debug         bool                           `json:"debug" yaml:"debug"`
	Engine        raceengine.EngineConfig        `json:"engine" yaml:"engine"`
	ArtifactStore raceengine.ArtifactStoreConfig `json:"artifact_store" yaml:"artifact_store"`
	LapFeed       laps.Config                    `json:"lap_feed" yaml:"lap_feed"`
}

func readConfig() (*Config, error) {
	conf := &Config{
		HTTPPort: 8772,
		Engine:   raceengine.DefaultEngineConfig(),
	}

	f, err := os.Open(configPath)

	if err != nil {
		return nil, err
	}

	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logger.Infof("Starting strategyd race analytics and strategy inference engine")

	config, err := readConfig()

	if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	if config.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the model cache must populate fully before any request is accepted.
	// a missing required artifact stops the process here.
	loader := raceengine.NewArtifactLoader(config.ArtifactStore, logger)

	cache, err := loader.LoadModelCache(ctx)

	if err != nil {
		logger.WithError(err).Fatal("Could not populate model cache")
	}

	engine := raceengine.NewEngine(config.Engine, cache, laps.NewHTTPSource(config.LapFeed), logger)

	h := raceengine.NewHTTP(config.HTTPPort, engine, logger)

	if err := h.Listen(); err != nil {
		logger.WithError(err).Fatal("Could not start HTTP server")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	logger.Infof("Shutting down strategyd")

	if err := h.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Could not shut down HTTP server cleanly")
	}

	logger.Infof("Server stopped. Exiting")
}
