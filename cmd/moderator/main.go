package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glowlive/stream-app/internal/messaging"
	"github.com/glowlive/stream-app/internal/metrics"
	"github.com/glowlive/stream-app/internal/moderation"
)

// The moderator re-checks delivered chat messages off the hot path. The
// stream server runs the same classifier inline; this worker exists so an
// updated term list (MODERATION_TERMS) can catch what the inline pass
// missed, and so review work scales independently of the edge.
func main() {
	log.Println("Starting Glow moderation service...")

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "glow-moderator"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Content classifier, optionally with an operator-supplied term list.
	var classifier *moderation.Classifier
	if v := os.Getenv("MODERATION_TERMS"); v != "" {
		classifier = moderation.NewClassifierWithTerms(strings.Split(v, ","))
		log.Printf("using custom term list (%d terms)", len(strings.Split(v, ",")))
	} else {
		classifier = moderation.NewClassifier()
	}

	// Subscribe to moderation check requests.
	err = natsClient.SubscribeModerationCheck(func(data []byte) {
		var req moderation.CheckRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("[moderator] failed to unmarshal request: %v", err)
			return
		}

		start := time.Now()
		result := classifier.Classify(req.Text)
		metrics.ClassifyLatency.Observe(time.Since(start).Seconds())

		if !result.Violates {
			log.Printf("[moderator] CLEAN session=%s stream=%s", req.SessionID, req.StreamID)
			return
		}

		log.Printf("[moderator] FLAGGED session=%s stream=%s reason=%s",
			req.SessionID, req.StreamID, result.Reason)

		resp := moderation.CheckResult{
			SessionID: req.SessionID,
			StreamID:  req.StreamID,
			Violates:  true,
			Reason:    string(result.Reason),
		}
		respData, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[moderator] failed to marshal result: %v", err)
			return
		}
		if err := natsClient.PublishModerationResult(req.SessionID, respData); err != nil {
			log.Printf("[moderator] failed to publish result: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to moderation checks: %v", err)
	}

	// Metrics endpoint.
	metricsAddr := ":9091"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("Glow moderation service running")
	log.Printf("  nats_url:     %s", natsConfig.URL)
	log.Printf("  metrics_addr: %s", metricsAddr)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
