package console

import (
	"fmt"
	"os"

	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

// Environment variables consulted when the matching flag is empty.
const (
	EnvSubscriptionKey = "SPX_SUBSCRIPTION_KEY"
	EnvEndpoint        = "SPX_ENDPOINT"
)

// Options are the command line settings that end up in the factory bag.
type Options struct {
	ConfigFile      string
	Engine          string
	Endpoint        string
	SubscriptionKey string
	Region          string
	Language        string

	MockMicrophone bool
	RealTime       int // percentage, 0..400
	MockWavFile    string
	MockKWS        bool
}

// DefaultOptions returns options with real-time pacing.
func DefaultOptions() Options {
	return Options{RealTime: 100}
}

// Apply loads the config file, then the environment, then the flags into
// props. Later sources win.
func (o Options) Apply(props *properties.Bag) error {
	if o.ConfigFile != "" {
		if err := props.LoadYAMLFile(o.ConfigFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	setString := func(key, value, env string) error {
		if value == "" && env != "" {
			value = os.Getenv(env)
		}
		if value == "" {
			return nil
		}
		return props.SetString(key, value)
	}
	if err := setString(properties.EngineName, o.Engine, ""); err != nil {
		return err
	}
	if err := setString(properties.Endpoint, o.Endpoint, EnvEndpoint); err != nil {
		return err
	}
	if err := setString(properties.SubscriptionKey, o.SubscriptionKey, EnvSubscriptionKey); err != nil {
		return err
	}
	if err := setString(properties.Region, o.Region, ""); err != nil {
		return err
	}
	if err := setString(properties.RecognitionLanguage, o.Language, ""); err != nil {
		return err
	}

	// A WAV file implies the mock microphone, played in a loop.
	if o.MockMicrophone || o.MockWavFile != "" {
		props.SetBool(properties.MockMicrophone, true)
		props.SetNumber(properties.MockRealTimePercentage, int64(min(max(o.RealTime, 0), 400)))
	}
	if o.MockWavFile != "" {
		props.SetString(properties.MockWavFile, o.MockWavFile)
		props.SetBool(properties.MockContinuousAudio, true)
	}
	if o.MockKWS {
		props.SetBool(properties.MockKeywordEngine, true)
	}
	return nil
}
