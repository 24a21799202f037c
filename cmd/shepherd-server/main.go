// Command shepherd-server runs the engine behind a websocket endpoint.
// Clients send event envelopes and receive alert broadcasts; /healthz and
// /summary are plain HTTP.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/shepherd-dynamics/go-engine/internal/archive"
	"github.com/shepherd-dynamics/go-engine/internal/config"
	"github.com/shepherd-dynamics/go-engine/internal/shepherd"
	"github.com/shepherd-dynamics/go-engine/internal/stream"
)

// #region main
func main() {
	cfgPath := envOr("SHEPHERD_CONFIG", "")
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()

	sh := shepherd.WithConfig(cfg.Model, cfg.Detector.ToDetector())

	if cfg.Archive.Enabled {
		store, err := archive.NewStore(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer store.Close()

		if snap, err := store.LatestSnapshot(); err == nil {
			restored, err := restoreIntoShepherd(cfg, snap)
			if err != nil {
				log.Printf("[server] snapshot restore failed, starting fresh: %v", err)
			} else {
				sh = restored
				log.Printf("[server] restored %d actors from snapshot", len(sh.Actors()))
			}
		}
	}

	proc := stream.NewProcessor(sh, cfg.Stream)
	hub := stream.NewHub(proc)
	go hub.Run()
	defer hub.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		data, err := proc.SummaryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		data, err := proc.SnapshotJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	log.Printf("[server] listening on %s (%d categories)", cfg.Stream.ListenAddr, cfg.Model.NCategories)
	if err := http.ListenAndServe(cfg.Stream.ListenAddr, mux); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region helpers

// restoreIntoShepherd rebuilds a shepherd around a restored model. Dyad
// detectors start cold; their Φ history rebuilds as events arrive.
func restoreIntoShepherd(cfg *config.Config, snapshot []byte) (*shepherd.Shepherd, error) {
	sh := shepherd.WithConfig(cfg.Model, cfg.Detector.ToDetector())
	if err := sh.RestoreModel(snapshot); err != nil {
		return nil, err
	}
	return sh, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
