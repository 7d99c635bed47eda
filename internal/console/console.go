// Package console implements the interactive test console and the batch
// recognition commands of the spx CLI.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/event"
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
)

// Prompt is printed before every interactive command.
const Prompt = "spx> "

// ErrExit is returned by Execute when the user asks to leave.
var ErrExit = errors.New("exit requested")

// Console drives one factory and its recognizer from text commands.
type Console struct {
	factory *recognizer.Factory
	reco    *recognizer.Recognizer
	logger  *slog.Logger

	outMu sync.Mutex
	out   io.Writer

	watches map[string]watch
	subsMu  sync.Mutex
	subs    map[string]event.Subscription
}

// New creates a console over factory. The recognizer uses the language
// configured in the factory bag, or the default language.
func New(factory *recognizer.Factory, out io.Writer, logger *slog.Logger) (*Console, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lang := factory.Properties().GetString(properties.RecognitionLanguage, recognizer.DefaultLanguage)
	reco, err := factory.NewSpeechRecognizerWithLanguage(lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	c := &Console{
		factory: factory,
		reco:    reco,
		logger:  logger.With("component", "console"),
		out:     out,
		subs:    make(map[string]event.Subscription),
	}
	c.watches = map[string]watch{
		"sessionstarted":      watchSignal(c, &reco.SessionStarted, formatSession),
		"sessionstopped":      watchSignal(c, &reco.SessionStopped, formatSession),
		"speechstartdetected": watchSignal(c, &reco.SpeechStartDetected, formatSpeech),
		"speechenddetected":   watchSignal(c, &reco.SpeechEndDetected, formatSpeech),
		"intermediateresult":  watchSignal(c, &reco.IntermediateResult, formatRecognition),
		"finalresult":         watchSignal(c, &reco.FinalResult, formatRecognition),
		"canceled":            watchSignal(c, &reco.Canceled, formatRecognition),
		"keyworddetected":     watchSignal(c, &reco.KeywordDetected, formatKeyword),
	}
	return c, nil
}

// Recognizer returns the recognizer driven by the console.
func (c *Console) Recognizer() *recognizer.Recognizer { return c.reco }

// Close stops any recognition and releases the recognizer.
func (c *Console) Close() error {
	return c.reco.Close()
}

// Printf writes to the console output. It is safe for use from event
// callbacks.
func (c *Console) Printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Run reads commands from in until EOF, exit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		c.Printf("%s", Prompt)
		if !scanner.Scan() {
			c.Printf("\n")
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Execute(ctx, scanner.Text()); errors.Is(err, ErrExit) {
			return nil
		}
	}
}

// Execute runs one command line. Errors are printed; ErrExit is returned
// for exit and quit. A panicking command is logged and reported as an
// error.
func (c *Console) Execute(ctx context.Context, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("command panicked", "line", line, "panic", r)
			err = fmt.Errorf("command panicked: %v", r)
			c.Printf("Error: %v\n", err)
		}
	}()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.help()
	case "exit", "quit":
		return ErrExit
	case "factory":
		err = c.property(c.factory.Properties(), fields[1:])
	case "recognizer":
		err = c.recognizer(ctx, fields[1:])
	default:
		err = fmt.Errorf("unknown command: '%s'. Use 'help' for a list of valid commands", line)
	}
	if err != nil {
		c.Printf("Error: %v\n", err)
	}
	return err
}

func (c *Console) help() {
	c.Printf(`Commands:
  help                                   show this text
  exit                                   leave the console
  factory get {string|number|bool} <name>
  factory set {string|number|bool} <name> <value>
  recognizer enable | disable | isenabled
  recognizer recognize
  recognizer startcontinuous | stopcontinuous
  recognizer startkeyword <model> | stopkeyword
  recognizer get|set ...                 same as factory, on the recognizer bag
  recognizer <event> {connect|disconnect|disconnectall}

Events: %s
`, strings.Join(c.eventNames(), ", "))
}

func (c *Console) eventNames() []string {
	names := make([]string, 0, len(c.watches))
	for name := range c.watches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Console) recognizer(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing recognizer command")
	}
	cmd := strings.ToLower(args[0])
	if w, ok := c.watches[cmd]; ok {
		if len(args) != 2 {
			return fmt.Errorf("usage: recognizer %s {connect|disconnect|disconnectall}", cmd)
		}
		return c.event(cmd, w, strings.ToLower(args[1]))
	}

	switch cmd {
	case "get", "set":
		return c.property(c.reco.Properties(), args)
	case "enable":
		c.reco.Enable()
	case "disable":
		c.reco.Disable()
	case "isenabled":
		c.Printf("IsEnabled: %t\n", c.reco.IsEnabled())
	case "recognize":
		return c.RecognizeOnce(ctx)
	case "startcontinuous":
		return <-c.reco.StartContinuousRecognitionAsync(ctx)
	case "stopcontinuous":
		return <-c.reco.StopContinuousRecognitionAsync()
	case "startkeyword":
		if len(args) != 2 {
			return errors.New("usage: recognizer startkeyword <model>")
		}
		model, err := keyword.FromFile(args[1])
		if err != nil {
			return err
		}
		return <-c.reco.StartKeywordRecognitionAsync(ctx, model)
	case "stopkeyword":
		return <-c.reco.StopKeywordRecognitionAsync()
	default:
		return fmt.Errorf("unknown recognizer command %q", cmd)
	}
	return nil
}

func (c *Console) property(bag *properties.Bag, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: {get|set} {string|number|bool} <name> [<value>]")
	}
	verb, kind, name := strings.ToLower(args[0]), strings.ToLower(args[1]), args[2]

	switch verb {
	case "get":
		switch kind {
		case "string":
			c.Printf("%s = %q\n", name, bag.GetString(name, ""))
		case "number":
			c.Printf("%s = %d\n", name, bag.GetNumber(name, 0))
		case "bool":
			c.Printf("%s = %t\n", name, bag.GetBool(name, false))
		default:
			return fmt.Errorf("unknown property type %q", kind)
		}
		return nil
	case "set":
		if len(args) < 4 {
			return fmt.Errorf("missing value for %s", name)
		}
		value := strings.Join(args[3:], " ")
		switch kind {
		case "string":
			return bag.SetString(name, value)
		case "number":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q: %w", value, err)
			}
			return bag.SetNumber(name, n)
		case "bool":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid bool %q: %w", value, err)
			}
			return bag.SetBool(name, b)
		default:
			return fmt.Errorf("unknown property type %q", kind)
		}
	default:
		return fmt.Errorf("unknown property verb %q", verb)
	}
}

// RecognizeOnce recognizes one utterance and prints the result.
func (c *Console) RecognizeOnce(ctx context.Context) error {
	outcome := <-c.reco.RecognizeOnceAsync(ctx)
	if outcome.Err != nil {
		return outcome.Err
	}
	c.printResult("RecognizeOnce", outcome.Result)
	return nil
}

// RunContinuous recognizes continuously for d, or until ctx is done, with
// every event printed.
func (c *Console) RunContinuous(ctx context.Context, d time.Duration) error {
	c.ConnectAll()
	defer c.DisconnectAll()

	if err := <-c.reco.StartContinuousRecognitionAsync(ctx); err != nil {
		return err
	}
	wait(ctx, d)
	return <-c.reco.StopContinuousRecognitionAsync()
}

// RunKeyword listens for the keyword of model for d, or until ctx is done.
func (c *Console) RunKeyword(ctx context.Context, model keyword.Model, d time.Duration) error {
	c.ConnectAll()
	defer c.DisconnectAll()

	if err := <-c.reco.StartKeywordRecognitionAsync(ctx, model); err != nil {
		return err
	}
	wait(ctx, d)
	return <-c.reco.StopKeywordRecognitionAsync()
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ConnectAll prints every recognizer event.
func (c *Console) ConnectAll() {
	for name, w := range c.watches {
		c.event(name, w, "connect")
	}
}

// DisconnectAll removes the console's own subscriptions.
func (c *Console) DisconnectAll() {
	for name, w := range c.watches {
		c.event(name, w, "disconnect")
	}
}

func (c *Console) event(name string, w watch, verb string) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	switch verb {
	case "connect":
		if _, ok := c.subs[name]; ok {
			return nil
		}
		c.subs[name] = w.connect()
	case "disconnect":
		if sub, ok := c.subs[name]; ok {
			w.disconnect(sub)
			delete(c.subs, name)
		}
	case "disconnectall":
		w.disconnectAll()
		delete(c.subs, name)
	default:
		return fmt.Errorf("unknown event verb %q", verb)
	}
	return nil
}

func (c *Console) printResult(label string, res *recognizer.Result) {
	c.Printf("%s: %s\n", label, formatResult(res))
}
