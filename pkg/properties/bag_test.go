package properties

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
	"github.com/matryer/is"
)

func TestBag_RoundTrip(t *testing.T) {
	is := is.New(t)
	b := New()

	is.Equal(b.GetBooleanValue("flag", true), true) // default when unset
	is.Equal(b.GetBooleanValue("flag", false), false)

	is.NoErr(b.SetProperty("flag", true))
	is.Equal(b.GetBooleanValue("flag", false), true)

	is.NoErr(b.SetProperty("name", "westus"))
	is.Equal(b.GetStringValue("name", ""), "westus")

	is.NoErr(b.SetProperty("pct", 200))
	is.Equal(b.GetNumberValue("pct", 100), int64(200))
}

func TestBag_WrongKindReturnsDefault(t *testing.T) {
	is := is.New(t)
	b := New()

	is.NoErr(b.SetString("pct", "fast"))
	is.Equal(b.GetNumber("pct", 100), int64(100))
	is.Equal(b.GetBool("pct", true), true)
	is.Equal(b.GetString("pct", ""), "fast")
}

func TestBag_LookupNotFound(t *testing.T) {
	is := is.New(t)
	b := New()

	_, err := b.Lookup("missing")
	is.True(errors.Is(err, spx.ErrNotFound))
	is.True(!b.Has("missing"))
}

func TestBag_SetRejectsBadInput(t *testing.T) {
	is := is.New(t)
	b := New()

	is.True(errors.Is(b.SetProperty("", "x"), spx.ErrInvalidArgument))
	is.True(errors.Is(b.SetProperty("k", 1.5), spx.ErrInvalidArgument))
}

func TestBag_ParentFallback(t *testing.T) {
	is := is.New(t)
	parent := New()
	child := NewChild(parent)

	is.NoErr(parent.SetString(Region, "westus"))
	is.Equal(child.GetString(Region, ""), "westus") // reads fall through

	is.NoErr(child.SetString(Region, "eastus"))
	is.Equal(child.GetString(Region, ""), "eastus")
	is.Equal(parent.GetString(Region, ""), "westus") // writes stay local

	child.Delete(Region)
	is.Equal(child.GetString(Region, ""), "westus")
	is.Equal(child.Parent(), parent)
}

func TestBag_Keys(t *testing.T) {
	is := is.New(t)
	b := New()
	is.NoErr(b.SetBool("b", true))
	is.NoErr(b.SetBool("a", true))
	is.Equal(b.Keys(), []string{"a", "b"})
}

func TestValue_Text(t *testing.T) {
	is := is.New(t)
	is.Equal(NumberValue(42).Text(), "42")
	is.Equal(BoolValue(true).Text(), "true")
	is.Equal(StringValue("x").Text(), "x")
}

func TestInternalKeys(t *testing.T) {
	is := is.New(t)

	for _, k := range []string{MockMicrophone, MockWavFile, MockRealTimePercentage, MockContinuousAudio, MockIterativeAudio, MockKeywordEngine} {
		is.True(IsInternal(k))
	}
	for _, k := range []string{SubscriptionKey, Region, Endpoint, RecognitionLanguage} {
		is.True(!IsInternal(k)) // public names never collide with test hooks
	}
	is.Equal(InternalKey("MockWavFile"), MockWavFile)
	is.Equal(InternalKey(MockWavFile), MockWavFile)
}

func TestBag_LoadYAML(t *testing.T) {
	is := is.New(t)
	b := New()

	doc := `
public:
  SpeechServiceConnection_Region: westus
internal:
  MockRealTimePercentage: 200
  MockContinuousAudio: true
  MockWavFile: /tmp/hello.wav
`
	is.NoErr(b.LoadYAML(strings.NewReader(doc)))
	is.Equal(b.GetString(Region, ""), "westus")
	is.Equal(b.GetNumber(MockRealTimePercentage, 100), int64(200))
	is.Equal(b.GetBool(MockContinuousAudio, false), true)
	is.Equal(b.GetString(MockWavFile, ""), "/tmp/hello.wav")
}

func TestBag_LoadYAMLRejectsInternalUnderPublic(t *testing.T) {
	b := New()
	err := b.LoadYAML(strings.NewReader("public:\n  SPX-INTERNAL-MockWavFile: x\n"))
	if err == nil {
		t.Error("Expected error for internal key under public")
	}
}

func TestBag_ConcurrentAccess(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.SetNumber("n", int64(j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.GetNumber("n", 0)
			}
		}()
	}
	wg.Wait()
}
