// Package weather implements the weather tool: current conditions for a
// location via wttr.in, falling back to Open-Meteo when wttr.in is
// unreachable or returns nothing useful.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kaivyy/agentd/internal/agent"
)

const requestTimeout = 8 * time.Second

// weatherEmoji maps wttr.in's emoji glyphs to bracketed text equivalents so
// output stays readable on terminals without emoji font support.
var weatherEmoji = map[string]string{
	"☀️": "[Sunny]",
	"☀":  "[Sunny]",
	"🌤️": "[Partly Cloudy]",
	"🌤":  "[Partly Cloudy]",
	"⛅":  "[Partly Cloudy]",
	"🌥️": "[Cloudy]",
	"🌥":  "[Cloudy]",
	"☁️": "[Cloudy]",
	"☁":  "[Cloudy]",
	"🌦️": "[Rainy]",
	"🌦":  "[Rainy]",
	"🌧️": "[Rainy]",
	"🌧":  "[Rainy]",
	"🌩️": "[Stormy]",
	"🌩":  "[Stormy]",
	"⛈️": "[Stormy]",
	"⛈":  "[Stormy]",
	"❄️": "[Snowy]",
	"❄":  "[Snowy]",
	"🌨️": "[Snowy]",
	"🌨":  "[Snowy]",
	"🌫️": "[Foggy]",
	"🌫":  "[Foggy]",
	"🌙":  "[Clear Night]",
}

// nonASCIIRemainder strips anything left outside basic ASCII and a couple of
// Unicode punctuation blocks once the known weather emoji have been mapped.
var nonASCIIRemainder = regexp.MustCompile(`[^\x00-\x7F\x{2000}-\x{206F}\x{2190}-\x{21FF}]`)

func cleanEmoji(text string) string {
	for emoji, replacement := range weatherEmoji {
		text = strings.ReplaceAll(text, emoji, replacement)
	}
	text = nonASCIIRemainder.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// openMeteoCondition maps Open-Meteo's numeric weather codes to the same
// bracketed vocabulary wttr.in output uses.
var openMeteoCondition = map[int]string{
	0: "[Clear]", 1: "[Partly Cloudy]", 2: "[Partly Cloudy]", 3: "[Cloudy]",
	45: "[Foggy]", 48: "[Foggy]",
	51: "[Rainy]", 53: "[Rainy]", 55: "[Rainy]", 61: "[Rainy]", 63: "[Rainy]", 65: "[Rainy]",
	71: "[Snowy]", 73: "[Snowy]", 75: "[Snowy]",
	95: "[Stormy]", 96: "[Stormy]", 99: "[Stormy]",
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, IsError: true}
}

// Tool implements the weather lookup, trying wttr.in first and falling back
// to Open-Meteo's geocoding + forecast APIs when that fails.
type Tool struct {
	httpClient *http.Client
	wttrBase   string
	geoBase    string
	forecastBase string
}

// New builds a weather tool using http.DefaultClient equivalents scoped to a
// short request timeout; a custom client can be supplied for testing.
func New(httpClient *http.Client) *Tool {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Tool{
		httpClient:   httpClient,
		wttrBase:     "https://wttr.in",
		geoBase:      "https://geocoding-api.open-meteo.com/v1/search",
		forecastBase: "https://api.open-meteo.com/v1/forecast",
	}
}

func (t *Tool) Name() string { return "weather" }

func (t *Tool) Description() string {
	return "Get CURRENT weather information for a location using wttr.in or Open-Meteo (no API key required). Always use this tool when the user asks about weather, temperature, or climate conditions rather than relying on training data."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {
				"type": "string",
				"description": "City name, airport code, or location (e.g. 'London', 'JFK', 'Kyoto')"
			},
			"format": {
				"type": "string",
				"description": "Output format: 'simple' (compact) or 'full' (detailed)",
				"enum": ["simple", "full"],
				"default": "simple"
			}
		},
		"required": ["location"]
	}`)
}

type params struct {
	Location string `json:"location"`
	Format   string `json:"format"`
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*agent.ToolResult, error) {
	var p params
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	if strings.TrimSpace(p.Location) == "" {
		return toolError("location is required"), nil
	}
	format := p.Format
	if format == "" {
		format = "simple"
	}

	if result, ok := t.fetchWttr(ctx, p.Location, format); ok {
		return &agent.ToolResult{Content: result}, nil
	}

	if format == "simple" {
		if result, ok := t.fetchOpenMeteo(ctx, p.Location); ok {
			return &agent.ToolResult{Content: result}, nil
		}
	}

	return toolError(fmt.Sprintf("could not fetch weather for %s, try a different location name", p.Location)), nil
}

func (t *Tool) fetchWttr(ctx context.Context, location, format string) (string, bool) {
	var query string
	switch format {
	case "simple":
		query = "format=%l:+%c+%t"
	case "full":
		query = "format=%l:+%c+%t+%h+%w"
	default:
		return "", false
	}

	reqURL := fmt.Sprintf("%s/%s?%s", t.wttrBase, url.PathEscape(strings.ReplaceAll(location, " ", "+")), query)
	body, ok := t.get(ctx, reqURL)
	if !ok {
		return "", false
	}
	return cleanEmoji(strings.TrimSpace(string(body))), true
}

type geoResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

func (t *Tool) fetchOpenMeteo(ctx context.Context, location string) (string, bool) {
	geoURL := fmt.Sprintf("%s?name=%s&count=1&language=en&format=json", t.geoBase, url.QueryEscape(location))
	geoBody, ok := t.get(ctx, geoURL)
	if !ok {
		return "", false
	}
	var geo geoResponse
	if err := json.Unmarshal(geoBody, &geo); err != nil || len(geo.Results) == 0 {
		return "", false
	}
	place := geo.Results[0]
	cityName := place.Name
	if cityName == "" {
		cityName = location
	}

	forecastURL := fmt.Sprintf("%s?latitude=%f&longitude=%f&current_weather=true", t.forecastBase, place.Latitude, place.Longitude)
	forecastBody, ok := t.get(ctx, forecastURL)
	if !ok {
		return "", false
	}
	var forecast forecastResponse
	if err := json.Unmarshal(forecastBody, &forecast); err != nil {
		return "", false
	}

	condition, known := openMeteoCondition[forecast.CurrentWeather.WeatherCode]
	if !known {
		condition = "[Unknown]"
	}
	return fmt.Sprintf("%s: %s   +%gC", cityName, condition, forecast.CurrentWeather.Temperature), true
}

func (t *Tool) get(ctx context.Context, reqURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return body, true
}
