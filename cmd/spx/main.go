package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriscow/speech-sdk-go/internal/console"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	_ "github.com/chriscow/speech-sdk-go/pkg/engine/fake"      // Import to register the fake engine
	_ "github.com/chriscow/speech-sdk-go/pkg/engine/openai"    // Import to register the OpenAI engine
	_ "github.com/chriscow/speech-sdk-go/pkg/engine/websocket" // Import to register the WebSocket engine
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/version"
)

var opts = console.DefaultOptions()

var rootCmd = &cobra.Command{
	Use:   "spx",
	Short: "Speech SDK console - drive recognizers from the command line",
	Long: `spx drives the speech SDK runtime from the command line. It recognizes
from a mock microphone or a WAV file, against the fake engine or a service.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List registered recognition engines",
	Run: func(cmd *cobra.Command, args []string) {
		infos := engine.List()
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		for _, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", info.Name, info.Description)
		}
	},
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize once, continuously, or after a keyword",
	RunE: func(cmd *cobra.Command, args []string) error {
		continuous, _ := cmd.Flags().GetDuration("continuous")
		kwsModel, _ := cmd.Flags().GetString("keyword")
		listen, _ := cmd.Flags().GetDuration("duration")
		mode := recognitionMode(cmd)

		logger := setupLogger()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, err := newConsole(cmd, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		switch mode {
		case recognizer.ModeKeyword:
			model, err := keyword.FromFile(kwsModel)
			if err != nil {
				return err
			}
			logger.Info("Listening for keyword", slog.String("keyword", model.Keyword), slog.Duration("duration", listen))
			return c.RunKeyword(ctx, model, listen)
		case recognizer.ModeContinuous:
			logger.Info("Recognizing continuously", slog.Duration("duration", continuous))
			return c.RunContinuous(ctx, continuous)
		default:
			return c.RecognizeOnce(ctx)
		}
	},
}

// recognitionMode picks the mode from the recognize flags. Single shot is
// the default.
func recognitionMode(cmd *cobra.Command) recognizer.Mode {
	single, _ := cmd.Flags().GetBool("single")
	continuous, _ := cmd.Flags().GetDuration("continuous")
	kwsModel, _ := cmd.Flags().GetString("keyword")

	switch {
	case single:
		return recognizer.ModeSingleShot
	case kwsModel != "":
		return recognizer.ModeKeyword
	case continuous > 0:
		return recognizer.ModeContinuous
	default:
		return recognizer.ModeSingleShot
	}
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive console",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, err := newConsole(cmd, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		c.Printf("spx console. Type 'help' for a list of commands.\n")
		return c.Run(ctx, cmd.InOrStdin())
	},
}

func newConsole(cmd *cobra.Command, logger *slog.Logger) (*console.Console, error) {
	factory := recognizer.NewFactory(recognizer.WithLogger(logger))
	if err := opts.Apply(factory.Properties()); err != nil {
		return nil, err
	}
	logger.Debug("Factory configured",
		slog.String("engine", factory.Properties().GetString(properties.EngineName, recognizer.DefaultEngine)),
		slog.Bool("mock_microphone", opts.MockMicrophone || opts.MockWavFile != ""))
	return console.New(factory, cmd.OutOrStdout(), logger)
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("SPX_LOG_FORMAT")
	logLevel := os.Getenv("SPX_LOG_LEVEL")

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	// Logs go to stderr so they don't interleave with console output.
	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func addRecognizeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("single", false, "Recognize a single utterance (default mode)")
	cmd.Flags().Duration("continuous", 0, "Recognize continuously for this long")
	cmd.Flags().String("keyword", "", "Keyword model file; recognize after each detection")
	cmd.Flags().Duration("duration", 30*time.Second, "How long to listen for the keyword")
	cmd.MarkFlagsMutuallyExclusive("single", "continuous", "keyword")
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "YAML file seeding the factory properties")
	flags.StringVar(&opts.Engine, "engine", "", "Recognition engine (fake, websocket, openai)")
	flags.StringVar(&opts.Endpoint, "endpoint", "", "Service endpoint (default $"+console.EnvEndpoint+")")
	flags.StringVar(&opts.SubscriptionKey, "subscription", "", "Subscription key (default $"+console.EnvSubscriptionKey+")")
	flags.StringVar(&opts.Region, "region", "", "Service region")
	flags.StringVar(&opts.Language, "language", "", "Recognition language")
	flags.BoolVar(&opts.MockMicrophone, "mockmicrophone", false, "Use the synthetic microphone")
	flags.IntVar(&opts.RealTime, "realtime", opts.RealTime, "Mock audio pacing in percent of real time, 0 disables pacing")
	flags.StringVar(&opts.MockWavFile, "mockwavfile", "", "Play this WAV file through the mock microphone")
	flags.BoolVar(&opts.MockKWS, "mockkws", false, "Use the fake keyword spotter")

	addRecognizeFlags(recognizeCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(consoleCmd)
}

// execute runs cmd and turns a panic into a logged failure.
func execute(cmd *cobra.Command) (code int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command panicked",
				slog.String("command", cmd.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			code = 2
		}
	}()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(rootCmd))
}
