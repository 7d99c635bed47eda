package properties

import "strings"

// InternalPrefix namespaces test and diagnostic hooks so that they never
// collide with user-facing option names.
const InternalPrefix = "SPX-INTERNAL-"

// Internal keys read by the mock audio and keyword components.
const (
	MockMicrophone         = InternalPrefix + "MockMicrophone"
	MockWavFile            = InternalPrefix + "MockWavFile"
	MockRealTimePercentage = InternalPrefix + "MockRealTimePercentage"
	MockContinuousAudio    = InternalPrefix + "MockContinuousAudio"
	MockIterativeAudio     = InternalPrefix + "MockIterativeAudio"
	MockKeywordEngine      = InternalPrefix + "MockKeywordEngine"
	MockFrameCount         = InternalPrefix + "MockFrameCount"
)

// Internal keys read by the fake recognition engine.
const (
	FakeEngineTranscript   = InternalPrefix + "FakeEngineTranscript"
	FakeEnginePhraseFrames = InternalPrefix + "FakeEnginePhraseFrames"
	FakeEngineInterimEvery = InternalPrefix + "FakeEngineInterimEvery"
	FakeEngineFailAfter    = InternalPrefix + "FakeEngineFailAfter"
	FakeEngineFailFatal    = InternalPrefix + "FakeEngineFailFatal"
)

// Public configuration keys.
const (
	SubscriptionKey     = "SpeechServiceConnection_Key"
	Region              = "SpeechServiceConnection_Region"
	Endpoint            = "SpeechServiceConnection_Endpoint"
	RecognitionLanguage = "SpeechServiceConnection_RecoLanguage"
	EngineName          = "SpeechServiceConnection_Engine"
	JSONErrorDetails    = "SpeechServiceResponse_JsonErrorDetails"
	JSONResult          = "SpeechServiceResponse_Json"
	SessionID           = "Speech_SessionId"
)

// IsInternal reports whether key belongs to the internal namespace.
func IsInternal(key string) bool {
	return strings.HasPrefix(key, InternalPrefix)
}

// InternalKey returns name in the internal namespace. It is a no-op for keys
// that already carry the prefix.
func InternalKey(name string) string {
	if IsInternal(name) {
		return name
	}
	return InternalPrefix + name
}
