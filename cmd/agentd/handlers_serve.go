package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kaivyy/agentd/internal/agent"
	"github.com/kaivyy/agentd/internal/agent/providers"
	"github.com/kaivyy/agentd/internal/bus"
	"github.com/kaivyy/agentd/internal/compaction"
	"github.com/kaivyy/agentd/internal/config"
	"github.com/kaivyy/agentd/internal/intent"
	"github.com/kaivyy/agentd/internal/jobs"
	"github.com/kaivyy/agentd/internal/resilience"
	"github.com/kaivyy/agentd/internal/sentinel"
	"github.com/kaivyy/agentd/internal/sessions"
	"github.com/kaivyy/agentd/internal/toolresult"
	execTool "github.com/kaivyy/agentd/internal/tools/exec"
	"github.com/kaivyy/agentd/internal/tools/files"
	jobsTool "github.com/kaivyy/agentd/internal/tools/jobs"
	sessionsTool "github.com/kaivyy/agentd/internal/tools/sessions"
	"github.com/kaivyy/agentd/internal/tools/sysinfo"
	"github.com/kaivyy/agentd/internal/tools/weather"
	"github.com/kaivyy/agentd/pkg/models"
)

const cliChannel models.ChannelType = "cli"

// loadOrDefaultConfig loads path, falling back to built-in defaults when the
// file does not exist so serve can run out of the box against env-var
// credentials alone.
func loadOrDefaultConfig(path string, log *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(underlyingNotExist(err)) {
		return nil, err
	}
	log.Warn("config file not found, using built-in defaults", "path", path)
	cfg = &config.Config{}
	cfg.LLM.DefaultProvider = "anthropic"
	cfg.Workspace.Path = "./workspace"
	cfg.Session.DefaultAgentID = "main"
	return cfg, nil
}

// underlyingNotExist unwraps config.Load's wrapped os.ReadFile error so
// os.IsNotExist still recognizes it.
func underlyingNotExist(err error) error {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if os.IsNotExist(err) {
			return err
		}
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
	return err
}

// buildProvider constructs the configured default LLM provider, wrapping it
// with a failover orchestrator over cfg.LLM.FallbackChain when set.
func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	providerID := cfg.LLM.DefaultProvider
	if providerID == "" {
		providerID = "anthropic"
	}

	primary, err := buildNamedProvider(providerID, cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.LLM.FallbackChain) == 0 {
		return primary, nil
	}

	orchestrator := agent.NewFailoverOrchestrator(primary, agent.DefaultFailoverConfig())
	for _, fallbackID := range cfg.LLM.FallbackChain {
		fallback, err := buildNamedProvider(fallbackID, cfg)
		if err != nil {
			slog.Default().Warn("skipping fallback provider", "provider", fallbackID, "error", err)
			continue
		}
		orchestrator.AddProvider(fallback)
	}
	return orchestrator, nil
}

func buildNamedProvider(providerID string, cfg *config.Config) (agent.LLMProvider, error) {
	pcfg := cfg.LLM.Providers[providerID]
	switch providerID {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       firstNonEmpty(pcfg.APIKey, os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(firstNonEmpty(pcfg.APIKey, os.Getenv("OPENAI_API_KEY"))), nil
	case "google":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey: firstNonEmpty(pcfg.APIKey, os.Getenv("GOOGLE_API_KEY")),
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// providerSummarizer adapts an agent.LLMProvider into compaction.Summarizer
// by issuing one non-streamed completion over the transcript being dropped.
type providerSummarizer struct {
	provider agent.LLMProvider
	model    string
}

func (s *providerSummarizer) GenerateSummary(ctx context.Context, messages []*compaction.Message, cfg *compaction.SummarizationConfig) (string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	model := s.model
	if cfg != nil && cfg.Model != "" {
		model = cfg.Model
	}
	reserve := 512
	if cfg != nil && cfg.ReserveTokens > 0 {
		reserve = cfg.ReserveTokens
	}

	req := &agent.CompletionRequest{
		Model:  model,
		System: "Summarize the following conversation history concisely, preserving facts, decisions, and open threads the assistant still needs to track.",
		Messages: []agent.CompletionMessage{
			{Role: "user", Content: transcript.String()},
		},
		MaxTokens: reserve,
	}

	chunks, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	var summary strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		summary.WriteString(chunk.Text)
	}
	return summary.String(), nil
}

// buildToolRegistry registers the local tool set available to every turn.
func buildToolRegistry(cfg *config.Config, jobStore jobs.Store, sessionStore sessions.Store, defaultAgent string) *agent.ToolRegistry {
	registry := agent.NewToolRegistry()

	registry.Register(weather.New(nil))
	registry.Register(sysinfo.NewInfoTool())
	registry.Register(sysinfo.NewProcessMemoryTool())
	registry.Register(sysinfo.NewCleanupTool())

	workspace := cfg.Workspace.Path
	if workspace == "" {
		workspace = "./workspace"
	}
	filesCfg := files.Config{Workspace: workspace}
	registry.Register(files.NewReadTool(filesCfg))
	registry.Register(files.NewWriteTool(filesCfg))
	registry.Register(files.NewEditTool(filesCfg))
	registry.Register(files.NewApplyPatchTool(filesCfg))

	execManager := execTool.NewManager(workspace)
	registry.Register(execTool.NewExecTool("exec", execManager))
	registry.Register(execTool.NewProcessTool(execManager))

	registry.Register(jobsTool.NewListTool(jobStore))
	registry.Register(jobsTool.NewStatusTool(jobStore))
	registry.Register(jobsTool.NewCancelTool(jobStore))

	registry.Register(sessionsTool.NewListTool(sessionStore, defaultAgent))
	registry.Register(sessionsTool.NewHistoryTool(sessionStore))
	registry.Register(sessionsTool.NewStatusTool(sessionStore))

	return registry
}

func runServe(cmd *cobra.Command, configPath, agentID string, debug bool) error {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := loadOrDefaultConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("building provider: %w", err)
	}

	defaultModel := cfg.LLM.Providers[cfg.LLM.DefaultProvider].DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}

	keyPool := []string{firstNonEmpty(cfg.LLM.Providers[cfg.LLM.DefaultProvider].APIKey, os.Getenv("ANTHROPIC_API_KEY"))}
	var fallbackModels []string
	for _, providerID := range cfg.LLM.FallbackChain {
		if m := cfg.LLM.Providers[providerID].DefaultModel; m != "" {
			fallbackModels = append(fallbackModels, m)
		}
	}
	resilienceLayer := resilience.NewLayer(keyPool, defaultModel, fallbackModels, logger)

	intentRouter := intent.New(nil, logger)

	messageBus := bus.New(logger)
	messageBus.SubscribeOutbound(string(cliChannel), func(msg models.OutboundMessage) {
		fmt.Println(msg.Content)
	})

	stateDir := cfg.Workspace.Path
	if stateDir == "" {
		stateDir = "."
	}
	crashSentinel := sentinel.New(stateDir, logger)
	if crashed := crashSentinel.CheckForCrash(); crashed != nil {
		fmt.Println(sentinel.FormatRecoveryMessage(crashed))
	}

	summarizer := &providerSummarizer{provider: provider, model: defaultModel}
	compactionGuard := compaction.NewGuard(summarizer, compaction.DefaultKeepRecent, logger)

	resultTruncator := toolresult.New(200000, 0.5)

	jobStore := jobs.NewMemoryStore()
	sessionStore := sessions.NewMemoryStore()
	sessionService := sessions.NewService(sessionStore, logger)

	registry := buildToolRegistry(cfg, jobStore, sessionStore, agentID)

	loopConfig := &agent.LoopConfig{
		MaxIterations:      10,
		MaxTokens:          4096,
		ExecutorConfig:     agent.DefaultExecutorConfig(),
		EnableBackpressure: true,
		StreamToolResults:  true,
		JobStore:           jobStore,
		ModelContextTokens: 180000,
		CompactionGuard:    compactionGuard,
		ResultTruncator:    resultTruncator,
		Resilience:         resilienceLayer,
		IntentRouter:       intentRouter,
		Bus:                messageBus,
		Sentinel:           crashSentinel,
		Logger:             logger,
	}
	loop := agent.NewAgenticLoop(provider, registry, sessionStore, loopConfig)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionKey := sessions.SessionKey(agentID, cliChannel, "local")
	session, err := sessionService.GetOrCreate(ctx, sessionKey, agentID, cliChannel, "local")
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	logger.Info("agentd ready", "version", version, "commit", commit, "date", date, "session_id", session.ID)
	fmt.Println("agentd: type a message and press enter (Ctrl+D to exit)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg := &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Channel:   cliChannel,
			Direction: models.DirectionInbound,
			Role:      models.RoleUser,
			Content:   line,
			CreatedAt: time.Now(),
		}

		// The reply itself reaches stdout via the bus subscriber registered
		// above, once publishOutbound fires on PhaseComplete; draining here
		// only surfaces mid-turn errors.
		chunks, err := loop.Run(ctx, session, msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		for chunk := range chunks {
			if chunk.Error != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", chunk.Error)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}

func runStatus(cmd *cobra.Command, configPath string) error {
	logger := slog.Default()
	cfg, err := loadOrDefaultConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("config: %s\n", configPath)
	fmt.Printf("default provider: %s\n", cfg.LLM.DefaultProvider)
	fmt.Printf("fallback chain: %s\n", strings.Join(cfg.LLM.FallbackChain, ", "))
	fmt.Printf("workspace: %s\n", cfg.Workspace.Path)
	return nil
}
