// Command mercury-scan lists the devices answering on a servo bus.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hipsterbrown/mercury-servo/config"
	"github.com/hipsterbrown/mercury-servo/mercury"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := flag.String("config", "bus.yaml", "path to the bus configuration")
	first := flag.Int("from", 0, "first id for a sequential scan")
	last := flag.Int("to", mercury.MaxID, "last id for a sequential scan")
	sequential := flag.Bool("sequential", false, "ping ids one at a time even on protocol 2.0")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		logrus.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	log, err := cfg.Log.NewLogger()
	if err != nil {
		logrus.Fatalf("logger setup failed: %v", err)
	}

	h, err := mercury.Open(cfg.Bus, log)
	if err != nil {
		log.WithError(err).Fatal("open bus failed")
	}
	defer h.Port().Close()

	if h.Protocol() == mercury.Protocol2 && !*sequential {
		ids, err := h.BroadcastPing()
		if err != nil {
			log.WithError(err).Fatal("broadcast ping failed")
		}
		for _, id := range ids {
			fmt.Printf("id %3d\n", id)
		}
		return
	}

	if *first < 0 || *last > mercury.MaxID {
		fmt.Fprintf(os.Stderr, "id range must be within 0..%d\n", mercury.MaxID)
		os.Exit(2)
	}
	found, err := h.Scan(byte(*first), byte(*last))
	if err != nil {
		log.WithError(err).Fatal("scan failed")
	}
	for _, f := range found {
		fmt.Printf("id %3d  model %d\n", f.ID, f.Model)
	}
}
