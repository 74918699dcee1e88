package providers

import (
	"errors"
	"testing"

	"github.com/dshills/prpilot/internal/config"
)

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.ModelConfig{Provider: "unknown"})
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNew_Aliases(t *testing.T) {
	m, err := New(config.ModelConfig{Provider: "google", APIKey: "k"})
	if err != nil {
		t.Fatalf("New(google): %v", err)
	}
	if m.Name() != "gemini" {
		t.Errorf("google alias resolved to %q", m.Name())
	}

	m, err = New(config.ModelConfig{Provider: "lmstudio"})
	if err != nil {
		t.Fatalf("New(lmstudio): %v", err)
	}
	if m.Name() != "ollama" {
		t.Errorf("lmstudio alias resolved to %q", m.Name())
	}
}

func TestNew_DefaultModel(t *testing.T) {
	m, err := New(config.ModelConfig{Provider: "gemini", APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := m.(*Gemini)
	if g.model != "gemini-2.5-flash-lite" {
		t.Errorf("model = %q", g.model)
	}
}

func TestNew_MissingKeyIsAuthError(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "anthropic"} {
		_, err := New(config.ModelConfig{Provider: name})
		if !IsAuthError(err) {
			t.Errorf("%s: expected auth error, got %v", name, err)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, info := range Known {
		got, ok := Lookup(info.Name)
		if !ok || got.Name != info.Name {
			t.Errorf("Lookup(%q) = %+v, %v", info.Name, got, ok)
		}
		if got.DefaultModel == "" || len(got.KeyEnv) == 0 {
			t.Errorf("%s: incomplete info %+v", info.Name, got)
		}
	}
	if _, ok := Lookup("bard"); ok {
		t.Error("Lookup(bard) should fail")
	}
}

func TestClassifyStatusTruncates(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	err := classifyStatus("p", 400, long)
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if len(re.Message) != 503 {
		t.Errorf("message length = %d, want 503", len(re.Message))
	}
}
