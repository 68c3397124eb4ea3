package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"chat-service/configs"
	"chat-service/internal/conversation"
	"chat-service/internal/idem"
	"chat-service/internal/kafka"
	"chat-service/internal/message"
	"chat-service/internal/migrate"
	"chat-service/internal/notify"
	"chat-service/internal/ratelimit"
	"chat-service/internal/redisx"
	"chat-service/internal/shared/db"
	"chat-service/internal/shared/httpx"
	"chat-service/internal/storage/s3"
	"chat-service/internal/user"
	"chat-service/internal/ws"
)

func initOTEL(ctx context.Context) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "otel-collector:4318"
	}
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Fatalf("otel exporter: %v", err)
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(envOr("OTEL_SERVICE_NAME", "chat-service")),
		attribute.String("deployment.environment", envOr("ENV", "local")),
	))
	ratio := 1.0
	if s := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f >= 0 && f <= 1 {
			ratio = f
		}
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := initOTEL(ctx)
	defer func() {
		c, cc := context.WithTimeout(context.Background(), 5*time.Second)
		defer cc()
		_ = shutdown(c)
	}()

	cfg := configs.LoadConfig()

	// Postgres
	store := db.Open(cfg.DSN())
	if os.Getenv("AUTO_MIGRATE") != "false" {
		if err := migrate.AutoMigrateAll(store); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// Redis
	rds := redisx.NewClient(cfg.RedisAddr())

	// Kafka producer for notification intents
	queue, err := kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatalf("kafka writer: %v", err)
	}
	defer queue.Close()

	// Object storage
	bucket, err := s3.New(s3.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		log.Fatalf("s3: %v", err)
	}
	if err := bucket.EnsureBucket(ctx); err != nil {
		log.Fatalf("s3 ensure bucket: %v", err)
	}

	// Realtime fan-out
	hub := ws.NewHub()

	// Wire repos & services
	userRepo := user.NewRepository(store)
	userSvc := user.NewService(userRepo)

	convRepo := conversation.NewRepository(store)
	convSvc := conversation.NewService(convRepo, userRepo, bucket, hub, rds)

	msgRepo := message.NewRepository(store)
	msgSvc := message.NewService(msgRepo, convSvc, bucket, hub, queue)

	uh := user.NewHandler(userSvc)
	ch := conversation.NewHandler(convSvc)
	mh := message.NewHandler(msgSvc)

	wsHandler := &ws.Handler{
		Hub: hub,
		CanJoin: func(_ context.Context, userID, conversationID uint) bool {
			ok, err := convSvc.IsMember(conversationID, userID)
			return err == nil && ok
		},
		InsecureSkipVerify: os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true",
	}

	limiter := ratelimit.New(rds)
	idemStore := idem.New(rds)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Auth
	mux.Handle("POST /auth/register", httpx.Wrap(uh.Register))
	mux.Handle("POST /auth/login", httpx.Wrap(uh.Login))

	// WebSocket
	mux.HandleFunc("GET /ws", wsHandler.Handle)

	// Public: attachment and avatar bytes are addressed by stable URLs
	// embedded in clients.
	mux.Handle("GET /conversations/{conversation_id}/messages/{message_id}/file", httpx.Wrap(mh.ServeAttachment))
	mux.Handle("GET /conversations/{id}/avatar", httpx.Wrap(ch.ServeAvatar))

	protect := func(pattern string, h http.Handler) {
		mux.Handle(pattern, httpx.AuthMiddleware(otelhttp.NewHandler(h, pattern)))
	}

	// Conversations
	protect("GET /conversations", httpx.Wrap(ch.List))
	protect("POST /conversations", httpx.Wrap(ch.Create))
	protect("GET /conversations/{id}", httpx.Wrap(ch.Get))
	protect("POST /conversations/{id}/read", httpx.Wrap(ch.MarkRead))
	protect("POST /conversations/{id}/leave", httpx.Wrap(ch.Leave))
	protect("DELETE /conversations/{id}", httpx.Wrap(ch.Delete))
	protect("POST /conversations/{id}/typing", httpx.Wrap(ch.SetTyping))
	protect("GET /conversations/{id}/typing", httpx.Wrap(ch.ListTyping))

	// Messages
	sendKey := func(r *http.Request) (string, error) {
		uid, err := httpx.UserFromCtx(r)
		if err != nil {
			return "", err
		}
		return "send:" + strconv.FormatUint(uint64(uid), 10), nil
	}
	protect("GET /conversations/{id}/messages", httpx.Wrap(mh.List))
	protect("POST /conversations/{id}/messages",
		limiter.LimitHTTP(30, time.Minute, sendKey, idemMiddleware(idemStore, httpx.Wrap(mh.Send))))
	protect("POST /conversations/{id}/messages/file",
		limiter.LimitHTTP(30, time.Minute, sendKey, httpx.Wrap(mh.SendFile)))
	protect("POST /conversations/{id}/messages/voice",
		limiter.LimitHTTP(30, time.Minute, sendKey, httpx.Wrap(mh.SendVoice)))

	// Reactions
	protect("POST /messages/{message_id}/reactions", httpx.Wrap(mh.AddReaction))
	protect("DELETE /messages/{message_id}/reactions/{emoji}", httpx.Wrap(mh.RemoveReaction))
	protect("DELETE /messages/{message_id}", httpx.Wrap(mh.Delete))

	// Users
	protect("GET /users/{user_id}", httpx.Wrap(uh.GetByID))

	// Notification worker
	var push notify.PushSender = notify.LogPush{}
	if cfg.PushGatewayURL != "" {
		push = notify.NewHTTPPush(cfg.PushGatewayURL)
	}
	consumer := notify.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, push)
	defer func() { _ = consumer.Close() }()

	go func() {
		log.Printf("notify worker consuming topic=%s group=%s brokers=%s",
			cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers)
		if err := consumer.Run(ctx); err != nil {
			log.Printf("notify worker stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		log.Printf("chat-service listening on %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Print("shutting down...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	cancel()
}

// idemMiddleware rejects replays of requests carrying an already-seen
// Idempotency-Key.
func idemMiddleware(store idem.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := store.PutNX(r.Context(), key, 10*time.Minute)
		if err != nil {
			// A redis outage must not block sends.
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			httpx.WriteJSON(w, map[string]string{"message": "duplicate request"}, http.StatusConflict)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
