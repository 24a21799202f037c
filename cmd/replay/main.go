// Command replay runs recorded event-trace fixtures through the engine and
// reports whether each trace met its expectations. Exits non-zero when any
// fixture fails.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shepherd-dynamics/go-engine/internal/replay"
)

// #region main
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <fixture.json> [...]\n", os.Args[0])
		os.Exit(2)
	}

	failed := 0
	for _, path := range os.Args[1:] {
		f, err := replay.LoadFixture(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}

		res, err := replay.Replay(f)
		if err != nil {
			log.Fatalf("replay %s: %v", path, err)
		}

		failures := f.Verify(res)
		if len(failures) == 0 {
			fmt.Printf("PASS %s (%q): %d events, %d alerts, %d actionable, %d duplicates skipped\n",
				path, f.Description, len(f.Events), len(res.Alerts), res.Actionable(), res.Skipped)
			continue
		}

		failed++
		fmt.Printf("FAIL %s (%q):\n", path, f.Description)
		for _, msg := range failures {
			fmt.Printf("  %s\n", msg)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// #endregion main
