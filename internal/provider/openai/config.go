package openai

// Config contains OpenAI provider configuration.
// All fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
type Config struct {
	APIKey  string   `env:"OPENAI_API_KEY"`
	BaseURL string   `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Models  []string `env:"OPENAI_MODELS"   envSeparator:"," envDefault:"gpt-4o-latest,gpt-4.5-preview"`
	Timeout int      `env:"OPENAI_TIMEOUT"  envDefault:"60"`
}
