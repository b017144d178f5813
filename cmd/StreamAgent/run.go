package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BTreeMap/StreamAgent/internal/agent"
	"github.com/BTreeMap/StreamAgent/internal/api"
	"github.com/BTreeMap/StreamAgent/internal/config"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/lockfile"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/platform"
	"github.com/BTreeMap/StreamAgent/internal/scheduler"
	"github.com/BTreeMap/StreamAgent/internal/speech"
	"github.com/BTreeMap/StreamAgent/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(env config.Env, flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one agent per character until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgents(ctx, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.streamURL, "stream-api-url", env.StreamAPIURL, "streaming platform base URL (overrides $STREAM_API_URL)")
	f.StringVar(&flags.streamKey, "stream-api-key", env.StreamAPIKey, "streaming platform API key (overrides $STREAM_API_KEY)")
	f.StringVar(&flags.provider, "llm-provider", env.LLMProvider, "text generation provider: openai or gemini (overrides $LLM_PROVIDER)")
	f.StringVar(&flags.openaiKey, "openai-api-key", env.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	f.StringVar(&flags.geminiKey, "gemini-api-key", env.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)")
	f.StringVar(&flags.smallModel, "model-small", env.OpenAIModelSmall, "model for short generations (overrides $OPENAI_MODEL_SMALL)")
	f.StringVar(&flags.mediumModel, "model-medium", env.OpenAIModelMedium, "model for long generations (overrides $OPENAI_MODEL_MEDIUM)")
	f.BoolVar(&flags.genaiDebug, "genai-debug", env.GenAIDebug, "record every generation under <state-dir>/debug (overrides $GENAI_DEBUG)")
	f.StringVar(&flags.playhtKey, "playht-api-key", env.PlayHTKey, "PlayHT API key; empty disables speech (overrides $PLAYHT_API_KEY)")
	f.StringVar(&flags.playhtUserID, "playht-user-id", env.PlayHTUserID, "PlayHT user id (overrides $PLAYHT_USER_ID)")
	f.StringVar(&flags.playhtVoice, "playht-voice", env.PlayHTVoice, "PlayHT voice (overrides $PLAYHT_VOICE)")
	f.StringVar(&flags.apiAddr, "api-addr", env.APIAddr, "status API listen address (overrides $API_ADDR)")
	f.StringVar(&flags.settingsPath, "settings", env.SettingsPath, "runtime settings file (overrides $AGENT_SETTINGS)")
	f.IntVar(&flags.commentLimit, "comment-limit", env.CommentLimit, "unread comments fetched per read (overrides $COMMENT_FETCH_LIMIT)")
	f.StringVar(&flags.heartbeatCron, "heartbeat-cron", env.HeartbeatCron, "scene heartbeat schedule (overrides $HEARTBEAT_CRON)")
	f.IntVar(&flags.maxSteps, "max-structured-steps", env.MaxStructuredSteps, "oracle call cap per structured story or content run (overrides $MAX_STRUCTURED_STEPS)")
	f.IntVar(&flags.maxRestarts, "max-restarts", 0, "give up after this many consecutive fatal restarts; 0 never gives up")
	f.BoolVar(&flags.publish, "publish-structured-thoughts", env.PublishStructuredThoughts, "post story and content thoughts as they are generated (overrides $PUBLISH_STRUCTURED_THOUGHTS)")
	return cmd
}

// runAgents wires every collaborator and runs the agents, the status API,
// the settings watcher and the heartbeat until ctx is done or one of them fails.
func runAgents(ctx context.Context, flags *Flags) error {
	characters, err := config.LoadCharacters(flags.characters)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(characters))
	for _, c := range characters {
		names = append(names, c.Name)
	}

	lock, err := lockfile.Acquire(flags.stateDir, names)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gen, err := genai.New(ctx, flags.provider, buildGenAIOptions(flags)...)
	if err != nil {
		return fmt.Errorf("create text generator: %w", err)
	}

	client, err := platform.NewClient(platform.WithBaseURL(flags.streamURL), platform.WithAPIKey(flags.streamKey))
	if err != nil {
		return fmt.Errorf("create platform client: %w", err)
	}

	settings, err := config.NewSettings(flags.settingsPath)
	if err != nil {
		return err
	}

	renderer, err := buildSpeechRenderer(flags)
	if err != nil {
		return err
	}

	agents := make([]*agent.Agent, 0, len(characters))
	views := make([]api.Agent, 0, len(characters))
	for _, c := range characters {
		a, err := agent.New(agent.Deps{
			Character: c,
			Generator: gen,
			Platform:  client,
			Memories:  st,
			Cycles:    st,
			Dedup:     st,
			Speech:    buildSynthesizer(renderer, client, c),
			Settings:  settings,
		}, buildAgentOptions(flags)...)
		if err != nil {
			return fmt.Errorf("create agent %s: %w", c.Name, err)
		}
		agents = append(agents, a)
		views = append(views, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		g.Go(func() error {
			if err := a.Run(gctx); err != nil {
				return fmt.Errorf("agent %s: %w", a.Name(), err)
			}
			return nil
		})
	}

	srv := api.NewServer(views, api.WithAddr(flags.apiAddr), api.WithReloader(settings))
	g.Go(func() error { return srv.Run(gctx) })

	if w, err := config.NewWatcher(settings.Path(), settings); err != nil {
		slog.Warn("Settings watcher disabled, use POST /config/reload instead", "path", settings.Path(), "error", err)
	} else {
		g.Go(func() error { return w.Run(gctx) })
	}

	sched := scheduler.NewScheduler()
	heartbeat := scheduler.NewHeartbeat(client, characters)
	if err := heartbeat.Schedule(gctx, sched, flags.heartbeatCron); err != nil {
		sched.Stop()
		return err
	}
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		// announce immediately instead of waiting for the first tick
		_ = heartbeat.Beat(gctx)
		return nil
	})

	slog.Info("StreamAgent started", "agents", names, "mode", settings.Mode(), "api_addr", flags.apiAddr)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("StreamAgent stopped with error", "error", err)
		return err
	}
	slog.Info("StreamAgent exited successfully")
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags *Flags) []store.Option {
	var storeOpts []store.Option
	if flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return append(storeOpts, store.WithPostgresDSN(flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN, "driver", flags.dbDriver)
	storeOpts = append(storeOpts, store.WithSQLiteDSN(flags.dbDSN))
	if flags.dbDriver != "" {
		storeOpts = append(storeOpts, store.WithDriver(flags.dbDriver))
	}
	return storeOpts
}

// buildGenAIOptions constructs generator options for the selected provider
func buildGenAIOptions(flags *Flags) []genai.Option {
	var opts []genai.Option
	switch strings.ToLower(flags.provider) {
	case genai.ProviderGemini, "google":
		// Gemini picks its model from $GEMINI_MODEL
		if flags.geminiKey != "" {
			opts = append(opts, genai.WithAPIKey(flags.geminiKey))
		}
	default:
		if flags.openaiKey != "" {
			opts = append(opts, genai.WithAPIKey(flags.openaiKey))
		}
		if flags.smallModel != "" || flags.mediumModel != "" {
			opts = append(opts, genai.WithModels(flags.smallModel, flags.mediumModel))
		}
	}
	if flags.genaiDebug {
		opts = append(opts, genai.WithDebug(true, flags.stateDir))
	}
	return opts
}

// buildAgentOptions constructs orchestrator options
func buildAgentOptions(flags *Flags) []agent.Option {
	opts := []agent.Option{
		agent.WithPublishThoughts(flags.publish),
		agent.WithMaxRestarts(flags.maxRestarts),
	}
	if flags.maxSteps > 0 {
		opts = append(opts, agent.WithMaxSteps(flags.maxSteps))
	}
	if flags.commentLimit > 0 {
		opts = append(opts, agent.WithCommentLimit(flags.commentLimit))
	}
	return opts
}

// buildSpeechRenderer returns nil when no PlayHT key is configured.
func buildSpeechRenderer(flags *Flags) (speech.Renderer, error) {
	if flags.playhtKey == "" {
		slog.Info("No PlayHT key configured, speech synthesis disabled")
		return nil, nil
	}
	opts := []speech.Option{speech.WithCredentials(flags.playhtKey, flags.playhtUserID)}
	if flags.playhtVoice != "" {
		opts = append(opts, speech.WithVoice(flags.playhtVoice))
	}
	p, err := speech.NewPlayHT(opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech renderer: %w", err)
	}
	return p, nil
}

func buildSynthesizer(renderer speech.Renderer, uploader speech.Uploader, c models.Character) speech.Synthesizer {
	if renderer == nil {
		return speech.Disabled{}
	}
	return speech.NewService(renderer, uploader, c.AgentID())
}
