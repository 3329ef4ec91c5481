package openai

import (
	"net/http"
	"os"
)

const defaultModel = "gpt-4o-mini"

type options struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures the OpenAI-compatible client.
type Option func(*options)

// WithAPIKey sets the API key. Falls back to the OPENAI_API_KEY environment
// variable when unset.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint, e.g. a
// self-hosted gateway. The default is the public OpenAI API.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithModel sets the default model used when a call does not name one.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. to configure proxies or
// transport-level timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
