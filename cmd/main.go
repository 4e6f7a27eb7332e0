package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arya-gaj/veri/internal/agent"
	"github.com/arya-gaj/veri/internal/api"
	"github.com/arya-gaj/veri/internal/chain"
	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/rpc"
	"github.com/arya-gaj/veri/internal/store"
	"github.com/arya-gaj/veri/internal/tools"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const version = "1.0.0"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file found or error loading it: %v\n", err)
	}

	var (
		httpAddr     = flag.String("http-addr", ":8080", "HTTP server address")
		openaiKey    = flag.String("openai-key", "", "OpenAI API key (can also be set via OPENAI_API_KEY env var)")
		query        = flag.String("query", "", "Answer one query and exit instead of serving")
		wallet       = flag.String("wallet", "", "Wallet address for one-shot query mode")
		pollInterval = flag.Duration("poll-interval", 2*time.Second, "Chain head polling interval for the block stream")
		showVersion  = flag.Bool("version", false, "Show version and exit")
		verbose      = flag.Bool("v", false, "Verbose mode - debug-level logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Veri v%s\n", version)
		fmt.Println("Natural-language wallet oracle with chain-verified answers")
		os.Exit(0)
	}

	log := newLogger(*verbose)
	network := models.LoadNetworkFromEnv()

	log.Info().
		Str("network", network.Name).
		Int64("chain_id", network.ID).
		Msg("starting")

	client := rpc.NewClient(network)

	cache, cleanup, err := newCache(log)
	if err != nil {
		log.Fatal().Err(err).Msg("cache initialization failed")
	}
	defer cleanup()

	llm := newLLM(*openaiKey, log)

	var queryStore store.Store
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		database := os.Getenv("MONGODB_DATABASE")
		if database == "" {
			database = "veri"
		}
		mongoStore, err := store.NewMongoStore(context.Background(), uri, database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("store initialization failed")
		}
		queryStore = mongoStore
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoStore.Close(ctx); err != nil {
				log.Warn().Err(err).Msg("store close failed")
			}
		}()
		log.Info().Msg("query logging enabled")
	}

	parser := tools.NewIntentParser(llm, log)
	fetcher := chain.NewFetcher(client, network, cache, log)
	synthesizer := tools.NewResponseSynthesizer(llm, network, log)
	resolver := agent.NewResolver(parser, fetcher, synthesizer, queryStore, log)

	if *query != "" {
		answerOnce(resolver, *query, *wallet, log)
		return
	}

	watcher := rpc.NewBlockWatcher(client, *pollInterval, log)
	server := api.NewServer(*httpAddr, resolver, watcher, network, queryStore, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
}

// answerOnce resolves a single query and prints the response as JSON
func answerOnce(resolver *agent.Resolver, query, wallet string, log zerolog.Logger) {
	if wallet == "" {
		log.Fatal().Msg("one-shot mode requires -wallet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	response, err := resolver.Resolve(ctx, query, wallet)
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}

	fmt.Println(models.ToJSON(response))
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	if verbose || os.Getenv("DEBUG") == "true" {
		level = zerolog.DebugLevel
	}

	var writer io.Writer = os.Stderr
	if os.Getenv("LOG_FORMAT") == "console" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// newCache prefers a shared redis instance when REDIS_ADDR is set and falls
// back to an in-process cache otherwise.
func newCache(log zerolog.Logger) (tools.Cache, func(), error) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis unreachable at %s: %w", addr, err)
		}

		log.Info().Str("addr", addr).Msg("using redis cache")
		return tools.NewRedisCache(client, "veri"), func() { client.Close() }, nil
	}

	cache, err := tools.NewMemoryCache()
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("using in-process cache")
	return cache, cache.Close, nil
}

// newLLM builds the OpenAI client when a key is configured. Without one the
// service runs entirely on deterministic parsing and templates.
func newLLM(flagKey string, log zerolog.Logger) llms.Model {
	key := flagKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		log.Info().Msg("no OpenAI key configured, using deterministic responses")
		return nil
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	llm, err := openai.New(openai.WithToken(key), openai.WithModel(model))
	if err != nil {
		log.Warn().Err(err).Msg("LLM initialization failed, using deterministic responses")
		return nil
	}

	log.Info().Str("model", model).Msg("LLM narration enabled")
	return llm
}
