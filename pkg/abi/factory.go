package abi

import (
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Factory_Create creates a recognizer factory.
func Factory_Create(out *Handle) spx.Status {
	return guard("Factory_Create", func() error {
		return outHandle("Factory_Create", out, func() (Handle, error) {
			return factories().Create(recognizer.NewFactory()), nil
		})
	})
}

func Factory_Handle_IsValid(h Handle) bool {
	return factories().IsValid(h)
}

func Factory_Handle_Close(h Handle) spx.Status {
	return guard("Factory_Handle_Close", func() error {
		return factories().Close(h)
	})
}

// Factory_GetPropertyBag returns a handle to the factory's bag.
func Factory_GetPropertyBag(h Handle, out *Handle) spx.Status {
	return guard("Factory_GetPropertyBag", func() error {
		return outHandle("Factory_GetPropertyBag", out, func() (Handle, error) {
			f, err := factories().Get(h)
			if err != nil {
				return InvalidHandle, err
			}
			return bags().Create(f.Properties()), nil
		})
	})
}

// Factory_CreateSpeechRecognizer creates a recognizer. An empty language
// keeps the factory's setting.
func Factory_CreateSpeechRecognizer(h Handle, language string, out *Handle) spx.Status {
	return guard("Factory_CreateSpeechRecognizer", func() error {
		return outHandle("Factory_CreateSpeechRecognizer", out, func() (Handle, error) {
			f, err := factories().Get(h)
			if err != nil {
				return InvalidHandle, err
			}
			var r *recognizer.Recognizer
			if language == "" {
				r, err = f.NewSpeechRecognizer()
			} else {
				r, err = f.NewSpeechRecognizerWithLanguage(language)
			}
			if err != nil {
				return InvalidHandle, err
			}
			return recognizers().Create(r), nil
		})
	})
}
