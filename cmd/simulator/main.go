package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glowlive/stream-app/internal/eventsim"
	"github.com/glowlive/stream-app/internal/gift"
	"github.com/glowlive/stream-app/internal/messaging"
)

// The simulator publishes synthetic viewer churn and gift activity so a
// stream feels alive during demos and load tests. A fixed SIM_SEED replays
// the exact same activity sequence.
func main() {
	log.Println("Starting Glow activity simulator...")

	seed := time.Now().UnixNano()
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	streams := []string{"demo-stream"}
	if v := os.Getenv("SIM_STREAMS"); v != "" {
		streams = streams[:0]
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				streams = append(streams, s)
			}
		}
	}
	if len(streams) == 0 {
		log.Fatal("SIM_STREAMS resolved to an empty list")
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "glow-simulator"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	source := eventsim.NewRandomSource(seed, gift.Catalog())

	log.Printf("Glow activity simulator running")
	log.Printf("  nats_url: %s", natsConfig.URL)
	log.Printf("  seed:     %d", seed)
	log.Printf("  interval: %s", interval)
	log.Printf("  streams:  %v", streams)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, streamID := range streams {
				ev := source.Next()
				payload, err := json.Marshal(eventsim.StreamEvent{
					StreamID: streamID,
					Type:     ev.Type,
					GiftID:   ev.GiftID,
				})
				if err != nil {
					continue
				}
				if err := natsClient.PublishSimEvent(payload); err != nil {
					log.Printf("[sim] publish stream=%s: %v", streamID, err)
					continue
				}
				log.Printf("[sim] stream=%s event=%s gift=%s", streamID, ev.Type, ev.GiftID)
			}
		case sig := <-sigCh:
			log.Printf("received signal %v, shutting down...", sig)
			natsClient.Close()
			return
		}
	}
}
