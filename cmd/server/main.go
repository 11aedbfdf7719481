package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/suPer8Hu/personapal/internal/bootstrap"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/httpapi"
	"github.com/suPer8Hu/personapal/internal/httpapi/handlers"
	"github.com/suPer8Hu/personapal/internal/profile"
	"github.com/suPer8Hu/personapal/internal/relay"
	"github.com/suPer8Hu/personapal/internal/store/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Server] .env not loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("backends: %v", err)
	}
	defer b.Close()

	provider := bootstrap.Provider(ctx, cfg)
	personas := bootstrap.Repository(cfg, b, provider)
	gen := bootstrap.Generator(cfg, provider)
	transcripts := chat.NewStore(b.Transcripts, b.Index)

	var persister chat.Persister
	var async *chat.AsyncPersister
	if cfg.PersistMode == config.PersistQueue {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("[Server] rabbit unavailable, persisting in-process err=%v", err)
		} else {
			defer pub.Close()
			persister = chat.NewQueuePersister(pub, 5*time.Second)
			log.Printf("[Server] persist=queue queue=%s", cfg.RabbitQueue)
		}
	}
	if persister == nil {
		async = chat.NewAsyncPersister(transcripts, cfg.UpstreamTimeout)
		persister = async
		log.Printf("[Server] persist=async")
	}

	hub := chat.NewHub(personas, gen, persister, transcripts)
	go hub.RunJanitor(ctx, cfg.SessionIdleTTL, time.Minute)
	profiles := profile.NewService(b.Profiles, cfg.UpstreamTimeout)
	h := handlers.NewHandler(cfg, personas, hub, transcripts, profiles)
	r := httpapi.NewRouter(cfg, h, relay.NewHandler(provider, cfg.UpstreamTimeout))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[Server] listening addr=%s fallback_mode=%t", cfg.HTTPAddr, gen.FallbackMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[Server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown failed err=%v", err)
	}
	if async != nil {
		async.Wait()
	}
}
