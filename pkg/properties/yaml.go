package properties

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML shape accepted by LoadYAML:
//
//	public:
//	  SpeechServiceConnection_Region: westus
//	internal:
//	  MockRealTimePercentage: 200
//
// Internal names are namespaced automatically.
type document struct {
	Public   map[string]any `yaml:"public"`
	Internal map[string]any `yaml:"internal"`
}

// LoadYAML seeds b from a YAML document.
func (b *Bag) LoadYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read properties: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse properties: %w", err)
	}

	for k, v := range doc.Public {
		if IsInternal(k) {
			return fmt.Errorf("internal property %q listed under public", k)
		}
		if err := b.setYAML(k, v); err != nil {
			return err
		}
	}
	for k, v := range doc.Internal {
		if err := b.setYAML(InternalKey(k), v); err != nil {
			return err
		}
	}
	return nil
}

// LoadYAMLFile seeds b from the YAML file at path.
func (b *Bag) LoadYAMLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open properties file: %w", err)
	}
	defer f.Close()
	return b.LoadYAML(f)
}

func (b *Bag) setYAML(key string, v any) error {
	switch val := v.(type) {
	case float64:
		// yaml.v3 decodes integers as int; floats are truncated.
		return b.SetNumber(key, int64(val))
	case nil:
		return b.SetString(key, "")
	default:
		if err := b.SetProperty(key, val); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		return nil
	}
}
