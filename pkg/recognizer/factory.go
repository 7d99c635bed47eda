package recognizer

import (
	"log/slog"

	"github.com/chriscow/speech-sdk-go/pkg/audio/pump"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/site"

	// Built-in engines register themselves by name.
	_ "github.com/chriscow/speech-sdk-go/pkg/engine/fake"
)

// DefaultEngine is used when SpeechServiceConnection_Engine is not set.
const DefaultEngine = "fake"

// DefaultKeywordFrames is the number of frames the mock keyword spotter
// consumes before it fires.
const DefaultKeywordFrames = 5

// Factory owns the root site of a recognition session tree: the shared
// property bag, the class registry with the audio classes and the logger.
type Factory struct {
	scope    *site.Scope
	registry *capability.Registry
	logger   *slog.Logger
	engine   engine.Engine
	spotters keyword.Factory
	retry    engine.RetryConfig
}

type factoryConfig struct {
	props    *properties.Bag
	logger   *slog.Logger
	engine   engine.Engine
	spotters keyword.Factory
	retry    *engine.RetryConfig
}

// FactoryOption configures a Factory.
type FactoryOption func(*factoryConfig)

// WithProperties seeds the factory scope with props.
func WithProperties(props *properties.Bag) FactoryOption {
	return func(c *factoryConfig) { c.props = props }
}

// WithLogger sets the logger shared by every component of the factory.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(c *factoryConfig) { c.logger = l }
}

// WithEngine uses e for every recognizer instead of resolving an engine by
// name from the properties.
func WithEngine(e engine.Engine) FactoryOption {
	return func(c *factoryConfig) { c.engine = e }
}

// WithKeywordSpotters sets how keyword spotters are created.
func WithKeywordSpotters(f keyword.Factory) FactoryOption {
	return func(c *factoryConfig) { c.spotters = f }
}

// WithRetry overrides the reconnect policy of continuous recognition.
func WithRetry(cfg engine.RetryConfig) FactoryOption {
	return func(c *factoryConfig) { c.retry = &cfg }
}

// NewFactory creates a factory.
func NewFactory(opts ...FactoryOption) *Factory {
	var cfg factoryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.props == nil {
		cfg.props = properties.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	reg := capability.NewRegistry()
	pump.Register(reg)

	f := &Factory{
		registry: reg,
		logger:   cfg.logger,
		engine:   cfg.engine,
		spotters: cfg.spotters,
		retry:    engine.DefaultRetryConfig,
	}
	if cfg.retry != nil {
		f.retry = *cfg.retry
	}
	f.scope = site.NewScope(
		site.WithProperties(cfg.props),
		site.WithRegistry(reg),
		site.WithLogger(cfg.logger),
	)
	return f
}

// Properties returns the factory's property bag. Recognizers created
// afterwards see its values unless they override them.
func (f *Factory) Properties() *properties.Bag { return f.scope.Properties() }

// Site returns the root site.
func (f *Factory) Site() site.Site { return f.scope }

// Registry returns the class registry.
func (f *Factory) Registry() *capability.Registry { return f.registry }

// NewSpeechRecognizer creates a recognizer in a child scope of the factory.
func (f *Factory) NewSpeechRecognizer() (*Recognizer, error) {
	scope := site.NewScope(site.WithParent(f.scope))
	return newRecognizer(recognizerConfig{
		scope:    scope,
		logger:   f.logger,
		engine:   f.engine,
		spotters: f.spotters,
		retry:    f.retry,
	}), nil
}

// NewSpeechRecognizerWithLanguage creates a recognizer for language.
func (f *Factory) NewSpeechRecognizerWithLanguage(language string) (*Recognizer, error) {
	r, err := f.NewSpeechRecognizer()
	if err != nil {
		return nil, err
	}
	if err := r.Properties().SetString(properties.RecognitionLanguage, language); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
