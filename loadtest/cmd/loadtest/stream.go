package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/glowlive/stream-app/loadtest/client"
	"github.com/glowlive/stream-app/loadtest/stats"
)

// chatLines are short clean messages cycled by simulated viewers. None of
// them trips the content classifier.
var chatLines = []string{
	"hello from the load test",
	"great stream",
	"nice one",
	"lets go",
	"what song is this",
	"greetings from tokyo",
	"first time here",
	"love this",
}

// runStream implements the live stream load test. One broadcaster goes live
// per stream, then viewers connect, join, chat at a fixed interval, and
// occasionally send a gift. Chat fan-out latency is measured from the
// server-assigned message timestamp to local receipt.
func runStream(args []string) {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	streams := fs.Int("streams", 1, "Number of live streams to run")
	viewers := fs.Int("viewers", 100, "Number of viewers spread across the streams")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration for viewer connections")
	duration := fs.Duration("duration", 30*time.Second, "How long viewers stay active")
	msgInterval := fs.Duration("msg-interval", 2*time.Second, "Interval between chat messages per viewer")
	giftEvery := fs.Int("gift-every", 10, "Send a gift every N chat messages (0 disables gifts)")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	fmt.Printf("Stream test: %d viewers across %d streams at %s (ramp=%s, duration=%s, interval=%s, gift-every=%d)\n",
		*viewers, *streams, *url, *rampUp, *duration, *msgInterval, *giftEvery)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	// -----------------------------------------------------------------------
	// Phase 1: Broadcasters go live
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 1: Broadcasters go live ---")

	streamIDs := make([]string, 0, *streams)
	broadcasters := make([]*client.Client, 0, *streams)
	for i := 0; i < *streams; i++ {
		streamID := fmt.Sprintf("loadtest-stream-%d", i)

		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		b, err := client.New(connCtx, *url)
		if err != nil {
			cancel()
			fmt.Printf("broadcaster %d connect failed: %v\n", i, err)
			collector.AddError()
			continue
		}
		if err := b.WaitForSession(connCtx); err != nil {
			cancel()
			b.Close()
			collector.AddError()
			continue
		}
		cancel()

		_ = b.Send(map[string]string{
			"type":      client.TypeStartStream,
			"stream_id": streamID,
			"username":  fmt.Sprintf("broadcaster-%d", i),
		})

		streamIDs = append(streamIDs, streamID)
		broadcasters = append(broadcasters, b)
		fmt.Printf("  stream %s is live\n", streamID)
	}

	if len(streamIDs) == 0 {
		fmt.Println("No streams went live; aborting.")
		scraper.Stop()
		collector.Report()
		return
	}

	// -----------------------------------------------------------------------
	// Phase 2: Viewers connect and join
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 2: Viewers connect and join ---")

	interval := *rampUp / time.Duration(*viewers)
	if interval <= 0 {
		interval = time.Millisecond
	}

	var mu sync.Mutex
	clients := make([]*client.Client, 0, *viewers)

	var msgsSent, msgsRecv, warnings, giftsOK, giftsRejected atomic.Int64

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	rampTicker := time.NewTicker(interval)
	launched := 0
	interrupted := false

	for launched < *viewers {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted during viewer ramp-up.")
			interrupted = true
			launched = *viewers
		case <-rampTicker.C:
			idx := launched
			launched++
			wg.Add(1)
			sem <- struct{}{}

			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				c, err := client.New(connCtx, *url)
				if err != nil {
					collector.AddError()
					return
				}
				if err := c.WaitForSession(connCtx); err != nil {
					collector.AddError()
					c.Close()
					return
				}

				m := c.GetMetrics()
				collector.AddConnect(m.ConnectLatency)

				// Measure chat fan-out latency from the server timestamp.
				c.On(client.TypeMessage, func(raw json.RawMessage) {
					var msg struct {
						Ts int64 `json:"ts"`
					}
					if err := json.Unmarshal(raw, &msg); err == nil && msg.Ts > 0 {
						collector.AddMsgLatency(time.Since(time.UnixMilli(msg.Ts)))
					}
					msgsRecv.Add(1)
				})
				c.On(client.TypeWarning, func(json.RawMessage) { warnings.Add(1) })
				c.On(client.TypeGiftSent, func(json.RawMessage) { giftsOK.Add(1) })
				c.On(client.TypeError, func(json.RawMessage) { giftsRejected.Add(1) })

				streamID := streamIDs[idx%len(streamIDs)]
				_ = c.JoinStream(streamID, fmt.Sprintf("viewer-%d", idx))

				mu.Lock()
				clients = append(clients, c)
				mu.Unlock()
			}()
		}
	}
	rampTicker.Stop()
	wg.Wait()

	fmt.Printf("Viewers connected: %d/%d (%d errors)\n",
		collector.ConnectionCount(), *viewers, collector.ErrorCount())

	// -----------------------------------------------------------------------
	// Phase 3: Chat and gift activity
	// -----------------------------------------------------------------------
	if !interrupted {
		fmt.Println("\n--- Phase 3: Chat and gift activity ---")

		activityCtx, activityCancel := context.WithTimeout(ctx, *duration)

		mu.Lock()
		active := make([]*client.Client, len(clients))
		copy(active, clients)
		mu.Unlock()

		var activityWg sync.WaitGroup
		for i, c := range active {
			i, c := i, c
			activityWg.Add(1)
			go func() {
				defer activityWg.Done()

				rng := rand.New(rand.NewSource(int64(i)))
				streamID := streamIDs[i%len(streamIDs)]
				ticker := time.NewTicker(*msgInterval)
				defer ticker.Stop()

				sent := 0
				for {
					select {
					case <-activityCtx.Done():
						return
					case <-ticker.C:
						sent++
						if *giftEvery > 0 && sent%*giftEvery == 0 {
							_ = c.SendGift(streamID, "rose")
						} else {
							_ = c.Chat(streamID, chatLines[rng.Intn(len(chatLines))])
						}
						msgsSent.Add(1)
					}
				}
			}()
		}

		// Progress reporting during the activity phase.
		statusTicker := time.NewTicker(5 * time.Second)
	activityLoop:
		for {
			select {
			case <-activityCtx.Done():
				break activityLoop
			case <-statusTicker.C:
				fmt.Printf("  [activity] sent: %d  received: %d  warnings: %d  gifts: %d\n",
					msgsSent.Load(), msgsRecv.Load(), warnings.Load(), giftsOK.Load())
			}
		}
		statusTicker.Stop()
		activityCancel()
		activityWg.Wait()
	}

	// -----------------------------------------------------------------------
	// Phase 4: Teardown
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 4: Teardown ---")

	mu.Lock()
	for _, c := range clients {
		c.Close()
	}
	mu.Unlock()

	for i, b := range broadcasters {
		_ = b.Send(map[string]string{
			"type":      client.TypeEndStream,
			"stream_id": streamIDs[i%len(streamIDs)],
		})
		b.Close()
	}
	fmt.Println("All connections closed.")

	scraper.Stop()

	fmt.Printf("\nMessages sent:    %d\n", msgsSent.Load())
	fmt.Printf("Messages received: %d\n", msgsRecv.Load())
	fmt.Printf("Warnings:          %d\n", warnings.Load())
	fmt.Printf("Gifts accepted:    %d\n", giftsOK.Load())
	fmt.Printf("Gift errors:       %d\n", giftsRejected.Load())
	collector.Report()
}
