package anthropic

// Config contains Anthropic-on-Bedrock provider configuration.
// Connect and read timeouts are kept separate: the read timeout applies
// to response headers only, since a streaming body stays open for as
// long as the model generates.
type Config struct {
	APIKey         string   `env:"ANTHROPIC_API_KEY"`
	BaseURL        string   `env:"ANTHROPIC_BASE_URL"         envDefault:"https://api.anthropic.com"`
	Models         []string `env:"ANTHROPIC_MODELS"           envSeparator:"," envDefault:"anthropic.claude-3-7-sonnet-20250219-v1:0"`
	ConnectTimeout int      `env:"ANTHROPIC_CONNECT_TIMEOUT"  envDefault:"60"`
	ReadTimeout    int      `env:"ANTHROPIC_READ_TIMEOUT"     envDefault:"60"`
}
