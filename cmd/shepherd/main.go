// Command shepherd reads JSONL events from stdin, drives the engine and
// prints every surviving alert to stdout. Set SHEPHERD_ARCHIVE_PATH to also
// persist alerts and a final snapshot to SQLite.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
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
	proc := stream.NewProcessor(sh, cfg.Stream)

	var store *archive.Store
	if cfg.Archive.Enabled {
		store, err = archive.NewStore(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer store.Close()
		log.Printf("[shepherd] archiving to %s", cfg.Archive.Path)
	}

	fmt.Fprintf(os.Stderr, "shepherd engine ready (%d categories), reading JSONL events from stdin\n", cfg.Model.NCategories)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	events, rejected, dup := 0, 0, 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev stream.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			rejected++
			log.Printf("[shepherd] bad event line: %v", err)
			continue
		}

		alerts, err := proc.HandleEvent(ev)
		if err != nil {
			if errors.Is(err, stream.ErrDuplicateEvent) {
				dup++
				continue
			}
			rejected++
			log.Printf("[shepherd] event rejected: %v", err)
			continue
		}
		events++

		for _, a := range alerts {
			out, err := json.Marshal(a)
			if err != nil {
				log.Printf("[shepherd] encode alert: %v", err)
				continue
			}
			fmt.Println(string(out))
			if store != nil {
				if err := store.AppendAlert(a); err != nil {
					log.Printf("[shepherd] archive alert: %v", err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read stdin: %v", err)
	}

	if store != nil {
		snap, err := proc.SnapshotJSON()
		if err != nil {
			log.Fatalf("snapshot: %v", err)
		}
		id, err := store.SaveSnapshot(snap)
		if err != nil {
			log.Fatalf("save snapshot: %v", err)
		}
		log.Printf("[shepherd] snapshot %s saved", id)
	}

	log.Printf("[shepherd] done: %d events, %d duplicates, %d rejected, %d alerts (%d actionable)",
		events, dup, rejected, len(sh.AlertHistory()), len(sh.ActionableAlerts()))
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
