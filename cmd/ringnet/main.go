package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/fluxorio/ringnet/pkg/config"
	"github.com/fluxorio/ringnet/pkg/logging"
	"github.com/fluxorio/ringnet/pkg/metrics"
	"github.com/fluxorio/ringnet/pkg/ring"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: RINGNET_CONFIG or built-in defaults)")
	flag.Parse()

	// .env overrides are optional; a missing file is not an error
	_ = godotenv.Load()

	path := *configPath
	if path == "" {
		path = os.Getenv("RINGNET_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		logging.NewDefaultLogger().Errorf("invalid configuration: %v", err)
		os.Exit(2)
	}

	var log logging.Logger
	if cfg.Debug {
		log = logging.NewDebugLogger()
	} else {
		log = logging.NewDefaultLogger()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.GetMetrics()
		go func() {
			log.Infof("serving metrics on %s", cfg.Metrics.Addr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	network, err := ring.Build(cfg, ring.Options{Logger: log, Metrics: m})
	if err != nil {
		log.Errorf("failed to build network: %v", err)
		os.Exit(2)
	}

	if err := network.Start(); err != nil {
		log.Errorf("failed to start network: %v", err)
		os.Exit(2)
	}

	reports := network.Run()

	log.Info("terminating simulation")
	network.Shutdown()

	for _, r := range reports {
		if !r.Passed {
			os.Exit(1)
		}
	}
}
