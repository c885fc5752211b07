package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration for the pipeline. It is built
// once at process start and passed to components by value reference;
// nothing mutates it afterwards. The data root (production vs test) is
// chosen at load time and frozen for the process lifetime.
type Config struct {
	// Contact email included in the User-Agent of every outbound request.
	// Required by Unpaywall and the Crossref/OpenAlex polite pools.
	ContactEmail string `env:"CONTACT_EMAIL"`

	// API keys. Anthropic is required for the filter stage, Semantic
	// Scholar is optional (anonymous access has lower limits).
	AnthropicAPIKey       string `env:"ANTHROPIC_API_KEY"`
	SemanticScholarAPIKey string `env:"SEMANTIC_SCHOLAR_API_KEY"`

	// LLM settings for the relevance filter.
	LLMModel        string `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMMaxTokens    int    `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	MaxConcurrent   int    `env:"MAX_CONCURRENT" envDefault:"5"`

	// HTTP behavior.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	HTTPRetries int           `env:"HTTP_RETRIES" envDefault:"4"`

	// Enrichment.
	MaxPasses int `env:"MAX_PASSES" envDefault:"2"`

	// Download limits.
	MaxPDFSizeBytes int64 `env:"MAX_PDF_SIZE_BYTES" envDefault:"52428800"` // 50 MiB

	// External DOCX converter binary (pandoc-compatible CLI).
	DocxConverter string `env:"DOCX_CONVERTER" envDefault:"pandoc"`

	// DataRoot is data/ in production mode, test_data/ in test mode.
	DataRoot string `env:"-"`
}

// Load parses environment variables into a Config and fixes the data
// root. testMode selects test_data/ instead of data/.
func Load(testMode bool) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if testMode {
		cfg.DataRoot = "test_data"
	} else {
		cfg.DataRoot = "data"
	}
	return cfg, nil
}

// DBPath is the embedded database file under the data root.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataRoot, "cache", "research_articles_management.db")
}

// PDFDir is where downloaded PDFs land, named by content SHA-1.
func (c *Config) PDFDir() string { return filepath.Join(c.DataRoot, "pdfs") }

// DocxDir is scanned for manually retrieved DOCX files.
func (c *Config) DocxDir() string { return filepath.Join(c.DataRoot, "docx") }

// HTMLDir is where downloaded OA HTML full texts land.
func (c *Config) HTMLDir() string { return filepath.Join(c.DataRoot, "html") }

// MarkdownFromDocxDir holds Markdown converted from DOCX.
func (c *Config) MarkdownFromDocxDir() string {
	return filepath.Join(c.DataRoot, "markdown", "from_docx")
}

// MarkdownFromHTMLDir holds Markdown converted from HTML.
func (c *Config) MarkdownFromHTMLDir() string {
	return filepath.Join(c.DataRoot, "markdown", "from_html")
}

// RequireContactEmail fails when the stage needs a contact email and the
// environment doesn't provide one.
func (c *Config) RequireContactEmail() error {
	if c.ContactEmail == "" {
		return fmt.Errorf("config: CONTACT_EMAIL is required for this stage")
	}
	return nil
}

// RequireAnthropicKey fails when the filter stage has no API key.
func (c *Config) RequireAnthropicKey() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("config: ANTHROPIC_API_KEY is required for this stage")
	}
	return nil
}
