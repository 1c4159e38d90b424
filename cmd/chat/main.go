// Command chat is a terminal REPL over the relay runtime: it routes each
// turn through the configured providers, follows tool calls, and prints the
// answer with any warnings and estimated cost.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/looplj/modelrelay/config"
	"github.com/looplj/modelrelay/internal/log"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/registry"
)

var cli struct {
	Config          string `help:"Path to the YAML config file."                                env:"MODELRELAY_CONFIG"                placeholder:"PATH"`
	Provider        string `help:"Pin requests to one provider (openai, anthropic, openrouter)." env:"MODELRELAY_CLI_PROVIDER"`
	Model           string `help:"Model id to chat with."                                       env:"MODELRELAY_CLI_MODEL"`
	MaxOutputTokens int64  `help:"Cap on generated tokens per turn."                            env:"MODELRELAY_CLI_MAX_OUTPUT_TOKENS" default:"1024"`
	Verbose         bool   `help:"Enable debug logging."`
}

func main() {
	_ = godotenv.Load()

	kctx := kong.Parse(&cli,
		kong.Name("chat"),
		kong.Description("Interactive chat over the modelrelay runtime."),
	)

	level := zapcore.WarnLevel
	if cli.Verbose {
		level = zapcore.DebugLevel
	}

	log.Configure(log.NewDevelopment(level))

	kctx.FatalIfErrorf(run())
}

func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	rt, err := cfg.BuildRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RefreshCron != "" {
		refresher := registry.NewRefresher(rt.Registry(), llm.DiscoveryOptions{}, &llm.Context{})
		if err := refresher.Start(cfg.RefreshCron); err != nil {
			return err
		}
		defer func() { _ = refresher.Stop(context.Background()) }()
	}

	hint, modelID, err := resolveTarget()
	if err != nil {
		return err
	}

	sess := newSession(rt, os.Stdout, modelID, hint, &cli.MaxOutputTokens)

	fmt.Printf("chatting with %s (/exit to quit, /clear to reset)\n", modelID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		quit, err := sess.handleLine(ctx, scanner.Text())
		if err != nil {
			return err
		}

		if quit {
			return nil
		}
	}
}

// resolveTarget turns the provider/model flags into a model reference,
// picking each provider's flagship model when none was named.
func resolveTarget() (*llm.ProviderID, string, error) {
	var hint *llm.ProviderID

	if cli.Provider != "" {
		provider, ok := config.ParseProvider(cli.Provider)
		if !ok {
			return nil, "", fmt.Errorf("unknown provider: %s", cli.Provider)
		}

		hint = &provider
	}

	modelID := cli.Model
	if modelID == "" {
		modelID = defaultModel(hint)
	}

	return hint, modelID, nil
}

func defaultModel(hint *llm.ProviderID) string {
	if hint == nil {
		return "gpt-5-mini"
	}

	switch *hint {
	case llm.ProviderAnthropic:
		return "claude-sonnet-4-5-20250929"
	case llm.ProviderOpenRouter:
		return "openai/gpt-5-mini"
	default:
		return "gpt-5-mini"
	}
}
