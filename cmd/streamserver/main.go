package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/glowlive/stream-app/internal/eventsim"
	"github.com/glowlive/stream-app/internal/gift"
	"github.com/glowlive/stream-app/internal/messaging"
	"github.com/glowlive/stream-app/internal/metrics"
	"github.com/glowlive/stream-app/internal/moderation"
	"github.com/glowlive/stream-app/internal/mute"
	"github.com/glowlive/stream-app/internal/protocol"
	"github.com/glowlive/stream-app/internal/ratelimit"
	"github.com/glowlive/stream-app/internal/session"
	"github.com/glowlive/stream-app/internal/stream"
	"github.com/glowlive/stream-app/internal/wallet"
	"github.com/glowlive/stream-app/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	startingBalance := int64(500)
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			startingBalance = n
		}
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = "glow-streamserver"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "stream-1"
	}

	sessionStore, err := session.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	rdb := sessionStore.Client()

	muteStore := mute.NewStore(rdb)
	balanceStore := wallet.NewBalanceStore(rdb)
	limiter := ratelimit.NewLimiter(rdb)

	// --- PostgreSQL gift ledger (optional) ---
	var ledger *wallet.Store
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		migrationsDir := "migrations"
		if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
			migrationsDir = v
		}

		m, err := migrate.New("file://"+migrationsDir, databaseURL)
		if err != nil {
			log.Fatalf("failed to init migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("migration close: source=%v db=%v", srcErr, dbErr)
		}

		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.Fatalf("failed to ping postgres: %v", err)
		}
		cancel()
		ledger = wallet.NewStore(db)
	} else {
		log.Printf("DATABASE_URL not set, gift ledger disabled")
	}

	gate := moderation.NewGate(moderation.NewClassifier())
	registry := stream.NewRegistry()
	wallets := newWalletSet()
	broadcasters := newBroadcasterSet()

	log.Printf("Glow stream server starting")
	log.Printf("  listen_addr:      %s", config.ListenAddr)
	log.Printf("  worker_pool:      %d", config.WorkerPoolSize)
	log.Printf("  max_connections:  %d", config.MaxConnections)
	log.Printf("  read_timeout:     %s", config.ReadTimeout)
	log.Printf("  write_timeout:    %s", config.WriteTimeout)
	log.Printf("  nats_url:         %s", natsConfig.URL)
	log.Printf("  redis_addr:       %s", redisAddr)
	log.Printf("  server_name:      %s", serverName)
	log.Printf("  starting_balance: %d", startingBalance)

	// Declare server early so closures can capture it.
	var server *ws.Server

	sendErr := func(conn *ws.Connection, code, message string) {
		data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
			Code: code, Message: message,
		})
		if err != nil {
			return
		}
		_ = conn.WriteMessage(data)
	}

	// syncGauges recomputes the viewer and stream gauges from the registry
	// so that floored decrements and simulated churn cannot skew them.
	syncGauges := func() {
		total := 0
		for _, s := range registry.All() {
			total += s.Snapshot().ViewerCount
		}
		metrics.LiveViewers.Set(float64(total))
		metrics.ActiveStreams.Set(float64(registry.Count()))
	}

	publishViewerCount := func(streamID string, count int) {
		out, err := protocol.NewServerMessage(protocol.TypeViewerCount, protocol.ViewerCountMsg{
			StreamID: streamID, Count: count,
		})
		if err != nil {
			return
		}
		if err := natsClient.PublishPresence(streamID, out); err != nil {
			log.Printf("[presence] publish stream=%s failed: %v", streamID, err)
		}
	}

	// ensureWallet loads the account balance from Redis (seeding new
	// accounts with the starting balance) and builds the session wallet.
	// The seed is SETNX, and a failed Redis round trip writes nothing: the
	// session falls back to the default in-memory balance and the stored
	// balance stays untouched.
	ensureWallet := func(ctx context.Context, sid, username string) *wallet.Wallet {
		if w := wallets.get(sid); w != nil {
			return w
		}
		bal := startingBalance
		seeded, err := balanceStore.Seed(ctx, username, startingBalance)
		if err != nil {
			log.Printf("[wallet] seed balance account=%s failed: %v", username, err)
		} else if !seeded {
			if stored, err := balanceStore.Get(ctx, username); err == nil {
				bal = stored
			}
		}
		w := wallet.New(bal)
		wallets.put(sid, w)
		return w
	}

	persistTx := func(streamID, sessID string, tx wallet.Transaction) {
		if ledger == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := ledger.Append(ctx, streamID, sessID, tx); err != nil {
			log.Printf("[ledger] append session=%s: %v", sessID, err)
		}
	}

	// handleModerationResult applies an async review verdict: a flagged
	// already-delivered message still costs a strike.
	handleModerationResult := func(sid string) func(data []byte) {
		return func(data []byte) {
			var res moderation.CheckResult
			if err := json.Unmarshal(data, &res); err != nil {
				return
			}
			if !res.Violates {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			count, err := muteStore.RecordViolation(ctx, res.StreamID, sid, res.Reason)
			if err != nil {
				log.Printf("[moderation] record violation session=%s: %v", sid, err)
				return
			}

			var out []byte
			if count >= mute.Strikes {
				out, _ = protocol.NewServerMessage(protocol.TypeMuted, protocol.MutedMsg{
					ExpiresAtMs: time.Now().UnixMilli() + moderation.MuteCooldownMs,
					CooldownSec: int(mute.Cooldown.Seconds()),
					Reason:      res.Reason,
				})
			} else {
				out, _ = protocol.NewServerMessage(protocol.TypeWarning, protocol.WarningMsg{
					Count:   count,
					Limit:   mute.Strikes,
					Reason:  res.Reason,
					Message: fmt.Sprintf("Warning %d/%d", count, mute.Strikes),
				})
			}
			if out != nil {
				_ = server.SendMessage(sid, out)
			}
		}
	}

	// endStreamLocal tears down a live session: registry, moderation state,
	// broadcaster bookkeeping, and the stream_ended fan-out.
	endStreamLocal := func(streamID string) {
		sess := registry.End(streamID)
		broadcasters.remove(streamID)
		gate.DropStream(streamID)

		if sess != nil {
			if out, err := protocol.NewServerMessage(protocol.TypeStreamEnded, protocol.StreamEndedMsg{
				StreamID: streamID,
			}); err == nil {
				_ = natsClient.PublishControl(streamID, out)
			}
			snap := sess.Snapshot()
			log.Printf("[stream] ended stream=%s duration=%ds viewers=%d earned=%d",
				streamID, snap.DurationSec, snap.ViewerCount, snap.GiftsEarnedTotal)
		}
		syncGauges()
	}

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// start_stream — broadcaster goes live
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeStartStream, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.StartStreamMsg)
		if !ok || m.StreamID == "" {
			sendErr(conn, protocol.CodeInvalidMessage, "missing stream_id")
			return
		}
		sid := conn.ID
		ctx := context.Background()

		username := m.Username
		if username == "" {
			username = "streamer-" + sid[:8]
		}

		sess := registry.Create(m.StreamID, username)
		broadcasters.set(m.StreamID, sid)

		// Rebuild gift earnings from the durable ledger after a restart.
		if ledger != nil {
			if total, err := ledger.StreamGiftTotal(ctx, m.StreamID); err == nil && total > 0 {
				sess.SeedGiftsEarned(total)
			}
		}

		if err := sessionStore.SetBroadcasting(ctx, sid, m.StreamID, username); err != nil {
			log.Printf("[stream] set broadcasting session=%s: %v", sid, err)
		}
		ensureWallet(ctx, sid, username)

		if err := natsClient.SubscribeToStream(m.StreamID, sid, func(subject string, data []byte) {
			_ = server.SendMessage(sid, data)
		}); err != nil {
			log.Printf("[stream] subscribe session=%s stream=%s: %v", sid, m.StreamID, err)
		}
		_ = natsClient.UnsubscribeModerationResult(sid)
		_ = natsClient.SubscribeModerationResult(sid, handleModerationResult(sid))

		resp, _ := protocol.NewServerMessage(protocol.TypeStreamStarted, protocol.StreamStartedMsg{
			StreamID: m.StreamID,
		})
		_ = conn.WriteMessage(resp)

		syncGauges()
		log.Printf("start_stream session=%s stream=%s streamer=%s", sid, m.StreamID, username)
	})

	// -----------------------------------------------------------------------
	// end_stream — broadcaster ends their stream
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeEndStream, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.EndStreamMsg)
		if !ok {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		if broadcasters.get(m.StreamID) != sid {
			sendErr(conn, protocol.CodeNotInStream, "only the broadcaster can end the stream")
			return
		}

		// Send the final snapshot to the broadcaster before teardown.
		if sess := registry.Get(m.StreamID); sess != nil {
			if snap, err := json.Marshal(sess.Snapshot()); err == nil {
				out, _ := protocol.NewServerMessage(protocol.TypeSnapshot, protocol.SnapshotMsg{Snapshot: snap})
				_ = conn.WriteMessage(out)
			}
		}

		endStreamLocal(m.StreamID)
		_ = natsClient.UnsubscribeFromStream(sid)
		_ = natsClient.UnsubscribeModerationResult(sid)
		if err := sessionStore.ClearStream(ctx, sid); err != nil {
			log.Printf("[stream] clear session=%s: %v", sid, err)
		}
		log.Printf("end_stream session=%s stream=%s", sid, m.StreamID)
	})

	// -----------------------------------------------------------------------
	// join_stream — viewer enters a live stream
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinStream, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.JoinStreamMsg)
		if !ok || m.StreamID == "" {
			sendErr(conn, protocol.CodeInvalidMessage, "missing stream_id")
			return
		}
		sid := conn.ID
		ctx := context.Background()

		sess := registry.Get(m.StreamID)
		if sess == nil {
			sendErr(conn, protocol.CodeStreamNotLive, "stream is not live")
			return
		}

		username := m.Username
		if username == "" {
			username = "viewer-" + sid[:8]
		}

		if err := sessionStore.SetWatching(ctx, sid, m.StreamID, username); err != nil {
			log.Printf("[join] set watching session=%s: %v", sid, err)
		}
		ensureWallet(ctx, sid, username)

		count := sess.ViewerJoined()
		publishViewerCount(m.StreamID, count)
		syncGauges()

		if err := natsClient.SubscribeToStream(m.StreamID, sid, func(subject string, data []byte) {
			_ = server.SendMessage(sid, data)
		}); err != nil {
			log.Printf("[join] subscribe session=%s stream=%s: %v", sid, m.StreamID, err)
		}
		_ = natsClient.UnsubscribeModerationResult(sid)
		_ = natsClient.SubscribeModerationResult(sid, handleModerationResult(sid))

		snap, err := json.Marshal(sess.Snapshot())
		if err != nil {
			log.Printf("[join] marshal snapshot stream=%s: %v", m.StreamID, err)
		}
		resp, _ := protocol.NewServerMessage(protocol.TypeStreamJoined, protocol.StreamJoinedMsg{
			StreamID: m.StreamID,
			Snapshot: snap,
		})
		_ = conn.WriteMessage(resp)

		log.Printf("join_stream session=%s stream=%s username=%s viewers=%d", sid, m.StreamID, username, count)
	})

	// -----------------------------------------------------------------------
	// leave_stream — viewer exits the stream
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveStream, func(conn *ws.Connection, msg interface{}) {
		sid := conn.ID
		ctx := context.Background()

		vs, err := sessionStore.Get(ctx, sid)
		if err != nil || vs == nil || vs.StreamID == "" {
			sendErr(conn, protocol.CodeNotInStream, "not in a stream")
			return
		}

		if sess := registry.Get(vs.StreamID); sess != nil {
			count := sess.ViewerLeft()
			publishViewerCount(vs.StreamID, count)
			syncGauges()
		}

		_ = natsClient.UnsubscribeFromStream(sid)
		_ = natsClient.UnsubscribeModerationResult(sid)
		if err := sessionStore.ClearStream(ctx, sid); err != nil {
			log.Printf("[leave] clear session=%s: %v", sid, err)
		}
		log.Printf("leave_stream session=%s stream=%s", sid, vs.StreamID)
	})

	// -----------------------------------------------------------------------
	// message — chat message through the moderation gate
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		allowed, _ := limiter.Allow(ctx, sid, ratelimit.RuleChat)
		if !allowed {
			out, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: int(ratelimit.RuleChat.Window.Seconds()),
			})
			_ = conn.WriteMessage(out)
			return
		}

		if err := stream.ValidateMessage(m.Text); err != nil {
			sendErr(conn, protocol.CodeInvalidMessage, err.Error())
			return
		}

		sess := registry.Get(m.StreamID)
		if sess == nil {
			sendErr(conn, protocol.CodeStreamNotLive, "stream is not live")
			return
		}

		vs, err := sessionStore.Get(ctx, sid)
		if err != nil || vs == nil || vs.StreamID != m.StreamID {
			sendErr(conn, protocol.CodeNotInStream, "join the stream before chatting")
			return
		}

		// Shared mute state: every instance agrees on an active mute.
		// Muting is a safety control, so a failed check rejects the send
		// instead of failing open.
		if muted, remaining, _, err := muteStore.IsMuted(ctx, m.StreamID, sid); err != nil {
			log.Printf("[message] mute check session=%s: %v", sid, err)
			sendErr(conn, protocol.CodeInternalError, "message could not be checked, try again")
			return
		} else if muted {
			out, _ := protocol.NewServerMessage(protocol.TypeMuteActive, protocol.MuteActiveMsg{
				RemainingSec: remaining,
			})
			_ = conn.WriteMessage(out)
			metrics.MessagesTotal.WithLabelValues("muted_rejected").Inc()
			return
		}

		nowMs := time.Now().UnixMilli()
		start := time.Now()
		d := gate.Check(m.StreamID, sid, m.Text, nowMs)
		metrics.ClassifyLatency.Observe(time.Since(start).Seconds())

		switch d.Action {
		case moderation.ActionAllow:
			cm := sess.AppendMessage(vs.Username, m.Text)
			out, _ := protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
				MessageID: cm.ID,
				Username:  cm.Username,
				Text:      cm.Text,
				Ts:        cm.TimestampMs,
			})
			if err := natsClient.PublishChat(m.StreamID, out); err != nil {
				log.Printf("[message] publish stream=%s: %v", m.StreamID, err)
			}

			// Queue the delivered message for async deep review.
			if req, err := json.Marshal(moderation.CheckRequest{
				SessionID: sid,
				StreamID:  m.StreamID,
				Text:      m.Text,
				Ts:        cm.TimestampMs,
			}); err == nil {
				_ = natsClient.PublishModerationRequest(req)
			}
			metrics.MessagesTotal.WithLabelValues("delivered").Inc()

		case moderation.ActionWarn:
			if _, err := muteStore.RecordViolation(ctx, m.StreamID, sid, string(d.Reason)); err != nil {
				log.Printf("[message] record violation session=%s: %v", sid, err)
			}
			out, _ := protocol.NewServerMessage(protocol.TypeWarning, protocol.WarningMsg{
				Count:   d.State.WarningCount,
				Limit:   moderation.MaxWarnings,
				Reason:  string(d.Reason),
				Message: "Warning " + moderation.WarningLabel(d.State),
			})
			_ = conn.WriteMessage(out)
			metrics.MessagesTotal.WithLabelValues("warned").Inc()

		case moderation.ActionNewlyMuted:
			if _, err := muteStore.RecordViolation(ctx, m.StreamID, sid, string(d.Reason)); err != nil {
				log.Printf("[message] record violation session=%s: %v", sid, err)
			}
			out, _ := protocol.NewServerMessage(protocol.TypeMuted, protocol.MutedMsg{
				ExpiresAtMs: d.State.MuteExpiresAtMs,
				CooldownSec: moderation.MuteCooldownMs / 1000,
				Reason:      string(d.Reason),
			})
			_ = conn.WriteMessage(out)
			metrics.MessagesTotal.WithLabelValues("blocked").Inc()

		case moderation.ActionMuteActive:
			remaining := int((d.State.MuteExpiresAtMs - nowMs) / 1000)
			if remaining < 0 {
				remaining = 0
			}
			out, _ := protocol.NewServerMessage(protocol.TypeMuteActive, protocol.MuteActiveMsg{
				RemainingSec: remaining,
			})
			_ = conn.WriteMessage(out)
			metrics.MessagesTotal.WithLabelValues("muted_rejected").Inc()
		}
	})

	// -----------------------------------------------------------------------
	// send_gift — deduct coins, credit the streamer, fan out the gift
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendGift, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SendGiftMsg)
		if !ok {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		allowed, _ := limiter.Allow(ctx, sid, ratelimit.RuleGift)
		if !allowed {
			out, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: int(ratelimit.RuleGift.Window.Seconds()),
			})
			_ = conn.WriteMessage(out)
			return
		}

		sess := registry.Get(m.StreamID)
		if sess == nil {
			sendErr(conn, protocol.CodeStreamNotLive, "stream is not live")
			return
		}

		vs, err := sessionStore.Get(ctx, sid)
		if err != nil || vs == nil || vs.StreamID != m.StreamID {
			sendErr(conn, protocol.CodeNotInStream, "join the stream before gifting")
			return
		}

		g, err := gift.Lookup(m.GiftID)
		if err != nil {
			sendErr(conn, protocol.CodeInvalidGift, "unknown gift: "+m.GiftID)
			return
		}

		// Atomic check-and-deduct against the shared balance.
		newBal, err := balanceStore.Deduct(ctx, vs.Username, g.Cost)
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			sendErr(conn, protocol.CodeInsufficientFunds, "not enough coins")
			return
		}
		if err != nil {
			log.Printf("[gift] deduct session=%s: %v", sid, err)
			return
		}

		// The shared balance already moved, so the durable ledger records
		// the deduction even if the in-memory mirror disagrees.
		tx := wallet.NewGiftSentTransaction(g, sess.Streamer)
		if w := wallets.get(sid); w != nil {
			if mtx, err := w.SendGift(g, sess.Streamer); err == nil {
				tx = mtx
			} else {
				log.Printf("[gift] wallet desync session=%s: %v", sid, err)
			}
		}
		persistTx(m.StreamID, sid, tx)

		// Streamer side: earnings on the session, ledger entry, balance credit.
		cm := sess.AppendGift(vs.Username, g)
		if bsid := broadcasters.get(m.StreamID); bsid != "" {
			if bw := wallets.get(bsid); bw != nil {
				if rtx, err := bw.ReceiveGift(g, vs.Username); err == nil {
					persistTx(m.StreamID, bsid, rtx)
				}
			}
			if _, err := balanceStore.Credit(ctx, sess.Streamer, g.Cost); err != nil {
				log.Printf("[gift] credit streamer=%s: %v", sess.Streamer, err)
			}
		}

		// Fan out: overlay event on the gift subject, chat line on the chat subject.
		if out, err := protocol.NewServerMessage(protocol.TypeGiftReceived, protocol.GiftReceivedMsg{
			GiftID:   g.ID,
			GiftName: g.Name,
			From:     vs.Username,
			Cost:     g.Cost,
		}); err == nil {
			_ = natsClient.PublishGift(m.StreamID, out)
		}
		if out, err := protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
			MessageID: cm.ID,
			Username:  cm.Username,
			Text:      cm.Text,
			Ts:        cm.TimestampMs,
			IsGift:    true,
			GiftType:  g.ID,
		}); err == nil {
			_ = natsClient.PublishChat(m.StreamID, out)
		}

		resp, _ := protocol.NewServerMessage(protocol.TypeGiftSent, protocol.GiftSentMsg{
			GiftID:  g.ID,
			Balance: newBal,
		})
		_ = conn.WriteMessage(resp)

		metrics.GiftsTotal.WithLabelValues(g.ID).Inc()
		metrics.CoinsTotal.WithLabelValues("gifted").Add(float64(g.Cost))
		log.Printf("send_gift session=%s stream=%s gift=%s cost=%d balance=%d", sid, m.StreamID, g.ID, g.Cost, newBal)
	})

	// -----------------------------------------------------------------------
	// purchase_coins — top up the viewer's balance
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypePurchaseCoins, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.PurchaseCoinsMsg)
		if !ok {
			return
		}
		sid := conn.ID
		ctx := context.Background()

		if m.Amount < 1 {
			sendErr(conn, protocol.CodeInvalidAmount, "amount must be at least 1")
			return
		}

		vs, err := sessionStore.Get(ctx, sid)
		if err != nil || vs == nil || vs.Username == "" {
			sendErr(conn, protocol.CodeNotInStream, "join or start a stream first")
			return
		}

		w := ensureWallet(ctx, sid, vs.Username)
		tx, err := w.PurchaseCoins(m.Amount)
		if err != nil {
			sendErr(conn, protocol.CodeInvalidAmount, err.Error())
			return
		}
		persistTx(vs.StreamID, sid, tx)

		newBal, err := balanceStore.Credit(ctx, vs.Username, m.Amount)
		if err != nil {
			log.Printf("[purchase] credit account=%s: %v", vs.Username, err)
			newBal = w.Balance()
		}

		resp, _ := protocol.NewServerMessage(protocol.TypeCoinsPurchased, protocol.CoinsPurchasedMsg{
			Amount:  m.Amount,
			Balance: newBal,
		})
		_ = conn.WriteMessage(resp)

		metrics.CoinsTotal.WithLabelValues("purchased").Add(float64(m.Amount))
		log.Printf("purchase_coins session=%s amount=%d balance=%d", sid, m.Amount, newBal)
	})

	// -----------------------------------------------------------------------
	// pin_message — broadcaster pins a chat message
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypePinMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.PinMessageMsg)
		if !ok {
			return
		}
		sid := conn.ID

		if broadcasters.get(m.StreamID) != sid {
			sendErr(conn, protocol.CodeNotInStream, "only the broadcaster can pin messages")
			return
		}
		sess := registry.Get(m.StreamID)
		if sess == nil {
			sendErr(conn, protocol.CodeStreamNotLive, "stream is not live")
			return
		}
		if !sess.Pin(m.MessageID) {
			sendErr(conn, protocol.CodeInvalidMessage, "message not in the recent window")
			return
		}

		if snap, err := json.Marshal(sess.Snapshot()); err == nil {
			out, _ := protocol.NewServerMessage(protocol.TypeSnapshot, protocol.SnapshotMsg{Snapshot: snap})
			_ = natsClient.PublishControl(m.StreamID, out)
		}
		log.Printf("pin_message session=%s stream=%s message=%s", sid, m.StreamID, m.MessageID)
	})

	// -----------------------------------------------------------------------
	// Simulated activity: viewer churn and gifts from the simulator.
	// -----------------------------------------------------------------------
	err = natsClient.SubscribeSimEvents(func(data []byte) {
		var ev eventsim.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		sess := registry.Get(ev.StreamID)
		if sess == nil {
			return
		}

		switch ev.Type {
		case eventsim.EventViewerJoin:
			count := sess.ViewerJoined()
			publishViewerCount(ev.StreamID, count)
		case eventsim.EventViewerLeave:
			count := sess.ViewerLeft()
			publishViewerCount(ev.StreamID, count)
		case eventsim.EventGift:
			g, err := gift.Lookup(ev.GiftID)
			if err != nil {
				return
			}
			cm := sess.AppendGift("glow_fan", g)
			if out, err := protocol.NewServerMessage(protocol.TypeGiftReceived, protocol.GiftReceivedMsg{
				GiftID:   g.ID,
				GiftName: g.Name,
				From:     cm.Username,
				Cost:     g.Cost,
			}); err == nil {
				_ = natsClient.PublishGift(ev.StreamID, out)
			}
			metrics.GiftsTotal.WithLabelValues(g.ID).Inc()
		}
		syncGauges()
	})
	if err != nil {
		log.Printf("failed to subscribe to sim events: %v", err)
	}

	server = ws.NewServer(config, sessionStore, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	// Disconnect cleanup: leave the stream, or tear it down if the
	// broadcaster dropped.
	server.SetOnDisconnect(func(connID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_ = natsClient.UnsubscribeFromStream(connID)
		_ = natsClient.UnsubscribeModerationResult(connID)
		wallets.remove(connID)

		vs, err := sessionStore.Get(ctx, connID)
		if err != nil || vs == nil || vs.StreamID == "" {
			return
		}

		if vs.Status == session.StatusBroadcasting {
			log.Printf("[disconnect] broadcaster session=%s dropped, ending stream=%s", connID, vs.StreamID)
			endStreamLocal(vs.StreamID)
			return
		}

		if sess := registry.Get(vs.StreamID); sess != nil {
			count := sess.ViewerLeft()
			publishViewerCount(vs.StreamID, count)
			syncGauges()
		}
		log.Printf("[disconnect] session=%s left stream=%s", connID, vs.StreamID)
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := sessionStore.Close(); err != nil {
			log.Printf("session store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// walletSet maps session IDs to their in-memory wallets.
type walletSet struct {
	mu sync.Mutex
	m  map[string]*wallet.Wallet
}

func newWalletSet() *walletSet {
	return &walletSet{m: make(map[string]*wallet.Wallet)}
}

func (s *walletSet) get(sid string) *wallet.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[sid]
}

func (s *walletSet) put(sid string, w *wallet.Wallet) {
	s.mu.Lock()
	s.m[sid] = w
	s.mu.Unlock()
}

func (s *walletSet) remove(sid string) {
	s.mu.Lock()
	delete(s.m, sid)
	s.mu.Unlock()
}

// broadcasterSet maps stream IDs to the broadcaster's session ID.
type broadcasterSet struct {
	mu sync.Mutex
	m  map[string]string
}

func newBroadcasterSet() *broadcasterSet {
	return &broadcasterSet{m: make(map[string]string)}
}

func (s *broadcasterSet) get(streamID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[streamID]
}

func (s *broadcasterSet) set(streamID, sid string) {
	s.mu.Lock()
	s.m[streamID] = sid
	s.mu.Unlock()
}

func (s *broadcasterSet) remove(streamID string) {
	s.mu.Lock()
	delete(s.m, streamID)
	s.mu.Unlock()
}
