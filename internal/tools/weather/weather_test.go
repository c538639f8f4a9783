package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanEmojiReplacesKnownGlyphs(t *testing.T) {
	got := cleanEmoji("London: ☀️ +20°C")
	want := "London: [Sunny] +20°C"
	if got != want {
		t.Errorf("cleanEmoji() = %q, want %q", got, want)
	}
}

func TestName(t *testing.T) {
	tool := New(nil)
	if got := tool.Name(); got != "weather" {
		t.Errorf("Name() = %q, want %q", got, "weather")
	}
}

func TestExecuteRequiresLocation(t *testing.T) {
	tool := New(nil)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError when location is missing")
	}
}

func TestExecuteUsesWttrResult(t *testing.T) {
	wttr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("London: ☀️ +20°C"))
	}))
	defer wttr.Close()

	tool := New(wttr.Client())
	tool.wttrBase = wttr.URL

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"location":"London"}`))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Execute() returned error: %s", result.Content)
	}
	want := "London: [Sunny] +20°C"
	if result.Content != want {
		t.Errorf("Content = %q, want %q", result.Content, want)
	}
}

func TestExecuteFallsBackToOpenMeteo(t *testing.T) {
	wttr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer wttr.Close()

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"name":"Kyoto","latitude":35.0,"longitude":135.75}]}`))
	}))
	defer geo.Close()

	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current_weather":{"temperature":18.5,"weathercode":3}}`))
	}))
	defer forecast.Close()

	tool := New(nil)
	tool.wttrBase = wttr.URL
	tool.geoBase = geo.URL
	tool.forecastBase = forecast.URL

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"location":"Kyoto"}`))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Execute() returned error: %s", result.Content)
	}
	want := "Kyoto: [Cloudy]   +18.5C"
	if result.Content != want {
		t.Errorf("Content = %q, want %q", result.Content, want)
	}
}

func TestExecuteFullFormatSkipsOpenMeteoFallback(t *testing.T) {
	wttr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer wttr.Close()

	tool := New(nil)
	tool.wttrBase = wttr.URL

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"location":"Nowhere","format":"full"}`))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result when wttr.in fails and format is not simple")
	}
}
