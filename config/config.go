package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/g4s8/hexcolor"
	"gopkg.in/yaml.v3"
)

// Text selection modes
const (
	TextModeTopRecord = "top-record"
	TextModeFixed     = "fixed"
)

// Fetch modes
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Publisher backends
const (
	BackendImgur = "imgur"
	BackendDrive = "drive"
	BackendLocal = "local"
)

// Config represents the service configuration
type Config struct {
	Server struct {
		Port     string `yaml:"port"`
		UseHTTPS bool   `yaml:"use_https"`
		CertPath string `yaml:"cert_path"`
		KeyPath  string `yaml:"key_path"`
		BaseURL  string `yaml:"base_url"` // Public URL of this server, used by the local publisher
	} `yaml:"server"`

	Report struct {
		URL           string        `yaml:"url"`
		IDParam       string        `yaml:"id_param"`
		TableSelector string        `yaml:"table_selector"`
		FetchMode     string        `yaml:"fetch_mode"`
		Timeout       time.Duration `yaml:"timeout"`
		UserAgent     string        `yaml:"user_agent"`
	} `yaml:"report"`

	Render struct {
		TemplatePath string  `yaml:"template_path"`
		FontPath     string  `yaml:"font_path"`
		FontSize     float64 `yaml:"font_size"`
		AnchorX      float64 `yaml:"anchor_x"`
		AnchorY      float64 `yaml:"anchor_y"`
		TextColor    string  `yaml:"text_color"`
		OutputDir    string  `yaml:"output_dir"`
	} `yaml:"render"`

	Text struct {
		Mode  string `yaml:"mode"`
		Fixed string `yaml:"fixed"`
	} `yaml:"text"`

	Publisher struct {
		Backend         string `yaml:"backend"`
		ImgurClientID   string `yaml:"imgur_client_id"`
		DriveFolderID   string `yaml:"drive_folder_id"`
		CredentialsPath string `yaml:"credentials_path"`
		Retries         uint64 `yaml:"retries"`
	} `yaml:"publisher"`

	Artifacts struct {
		// Keep local files after a remote publish. The local backend always keeps them.
		Keep bool `yaml:"keep"`
	} `yaml:"artifacts"`

	Telegram struct {
		Token        string  `yaml:"token"`
		AllowedUsers []int64 `yaml:"allowed_users"` // Empty allows everyone
	} `yaml:"telegram"`
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8005"
	cfg.Server.BaseURL = "http://localhost:8005"

	cfg.Report.URL = "http://javid.ddns.net/tModLoader/tools/ranksbysteamid.php"
	cfg.Report.IDParam = "steamid64"
	cfg.Report.TableSelector = ".primary"
	cfg.Report.FetchMode = FetchModeHTTP
	cfg.Report.Timeout = 20 * time.Second
	cfg.Report.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	cfg.Render.TemplatePath = "card.png"
	cfg.Render.FontPath = "fonts/Andy Bold.ttf"
	cfg.Render.FontSize = 32
	cfg.Render.TextColor = "#ffffff"
	cfg.Render.OutputDir = "output"

	cfg.Text.Mode = TextModeTopRecord

	cfg.Publisher.Backend = BackendImgur
	cfg.Publisher.Retries = 3
	return cfg
}

// ApplyEnv overrides secrets and deployment settings from the environment
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("IMGUR_CLIENT_ID")); v != "" {
		c.Publisher.ImgurClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("PUBLISHER_BACKEND")); v != "" {
		c.Publisher.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ALLOWED_USERS")); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		c.Telegram.AllowedUsers = ids
	}
}

// Validate checks that the settings needed by every mode are present and consistent
func (c *Config) Validate() error {
	if c.Report.URL == "" {
		return fmt.Errorf("report.url must be set")
	}
	if c.Report.IDParam == "" {
		return fmt.Errorf("report.id_param must be set")
	}
	switch c.Report.FetchMode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return fmt.Errorf("unknown report.fetch_mode %q", c.Report.FetchMode)
	}

	switch c.Text.Mode {
	case TextModeTopRecord:
	case TextModeFixed:
		if c.Text.Fixed == "" {
			return fmt.Errorf("text.fixed must be set when text.mode is %q", TextModeFixed)
		}
	default:
		return fmt.Errorf("unknown text.mode %q", c.Text.Mode)
	}

	if c.Render.FontSize <= 0 {
		return fmt.Errorf("render.font_size must be positive, got %g", c.Render.FontSize)
	}
	if _, err := c.TextColor(); err != nil {
		return err
	}

	switch c.Publisher.Backend {
	case BackendImgur:
		if c.Publisher.ImgurClientID == "" {
			return fmt.Errorf("publisher.imgur_client_id (or IMGUR_CLIENT_ID) must be set for the imgur backend")
		}
	case BackendDrive, BackendLocal:
	default:
		return fmt.Errorf("unknown publisher.backend %q", c.Publisher.Backend)
	}

	if c.Server.UseHTTPS && (c.Server.CertPath == "" || c.Server.KeyPath == "") {
		return fmt.Errorf("'cert_path' or 'key_path' cannot be empty when use_https is set")
	}
	return nil
}

// TextColor parses the configured hex text color
func (c *Config) TextColor() (color.Color, error) {
	col, err := ParseHexColor(c.Render.TextColor)
	if err != nil {
		return nil, fmt.Errorf("invalid render.text_color %q: %w", c.Render.TextColor, err)
	}
	return col, nil
}

// ParseHexColor parses a hex color with or without the leading "#"
func ParseHexColor(s string) (color.Color, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return hexcolor.Parse(s)
}

// KeepArtifacts reports whether local card files outlive publishing
func (c *Config) KeepArtifacts() bool {
	return c.Artifacts.Keep || c.Publisher.Backend == BackendLocal
}
