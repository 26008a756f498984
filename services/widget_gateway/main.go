// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/capabilities"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/routes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/badgerkv"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/sqlite"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("widget-gateway-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// envInt reads an integer env var, falling back to def with a warning when
// unset or unparseable.
func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer env var, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func envFloat(key string, def float32) float32 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		slog.Warn("Invalid float env var, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return float32(v)
}

func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: Trim quotes and whitespace just in case Podman passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		log.Fatal("WEAVIATE_SERVICE_URL must be set to the knowledge base URL")
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL is invalid: %q", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	return client
}

func main() {
	port := os.Getenv("CHAT_GATEWAY_PORT")
	if port == "" {
		port = "12230"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Stores ---
	messageDBPath := os.Getenv("MESSAGE_DB_PATH")
	if messageDBPath == "" {
		messageDBPath = "/data/messages.db"
		slog.Warn("MESSAGE_DB_PATH is not set, defaulting to '/data/messages.db'")
	}
	messages, err := sqlite.Open(messageDBPath)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer messages.Close()

	configDBPath := os.Getenv("CONFIG_DB_PATH")
	if configDBPath == "" {
		configDBPath = "/data/widget_configs"
		slog.Warn("CONFIG_DB_PATH is not set, defaulting to '/data/widget_configs'")
	}
	configs, err := badgerkv.Open(configDBPath)
	if err != nil {
		log.Fatalf("Failed to open config store: %v", err)
	}
	defer configs.Close()

	// --- Capabilities ---
	openaiClient, err := capabilities.NewOpenAIClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize OpenAI client: %v", err)
	}
	weaviateClient := newWeaviateClient()

	deps := engine.Dependencies{
		Embedder:  capabilities.NewOpenAIEmbedder(openaiClient),
		Retriever: capabilities.NewWeaviateRetriever(weaviateClient),
		Generator: capabilities.NewOpenAIGenerator(openaiClient),
		Messages:  messages,
		Configs:   configs,
	}
	engineCfg := engine.Config{
		HistoryWindow: envInt("HISTORY_WINDOW", 10),
		RetrievalTopK: envInt("RETRIEVAL_TOP_K", 5),
		Temperature:   envFloat("GENERATION_TEMPERATURE", 0.7),
		MaxTokens:     envInt("GENERATION_MAX_TOKENS", 1000),
	}
	registry := engine.NewRegistry(deps, engineCfg)

	adminSecret := os.Getenv("ADMIN_API_SECRET")
	if adminSecret == "" {
		slog.Warn("ADMIN_API_SECRET is not set, admin routes are disabled")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("widget-gateway-service"))

	routes.SetupRoutes(router, registry, messages, configs, adminSecret)

	log.Println("Starting the widget gateway server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
