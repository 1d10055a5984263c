package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
report:
  timeout: 5s
text:
  mode: fixed
  fixed: "Top Mods"
publisher:
  backend: local
render:
  text_color: "ff0000"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Report.Timeout != 5*time.Second {
		t.Errorf("Report.Timeout = %v, want 5s", cfg.Report.Timeout)
	}
	if cfg.Text.Mode != TextModeFixed || cfg.Text.Fixed != "Top Mods" {
		t.Errorf("Text = %+v, want fixed/Top Mods", cfg.Text)
	}
	// untouched keys keep their defaults
	if cfg.Report.IDParam != "steamid64" {
		t.Errorf("Report.IDParam = %q, want default steamid64", cfg.Report.IDParam)
	}
	if cfg.Report.TableSelector != ".primary" {
		t.Errorf("Report.TableSelector = %q, want .primary", cfg.Report.TableSelector)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	col, err := cfg.TextColor()
	if err != nil {
		t.Fatalf("TextColor() error = %v", err)
	}
	r, g, b, a := col.RGBA()
	want := color.RGBA{R: 255, A: 255}
	wr, wg, wb, wa := want.RGBA()
	if r != wr || g != wg || b != wb || a != wa {
		t.Errorf("TextColor() = %v, want %v", col, want)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.Color
		wantErr bool
	}{
		{in: "ff0000", want: color.RGBA{R: 255, A: 255}},
		{in: "#00ff00", want: color.RGBA{G: 255, A: 255}},
		{in: "red", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseHexColor(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) error = %v", tt.in, err)
			}
			r, g, b, a := got.RGBA()
			wr, wg, wb, wa := tt.want.RGBA()
			if r != wr || g != wg || b != wb || a != wa {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() on a missing file should fail")
	}

	path := writeConfig(t, "report: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() on invalid YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"imgur with client id", func(c *Config) { c.Publisher.ImgurClientID = "abc" }, ""},
		{"imgur without client id", func(c *Config) {}, "imgur_client_id"},
		{"local backend", func(c *Config) { c.Publisher.Backend = BackendLocal }, ""},
		{"unknown backend", func(c *Config) { c.Publisher.Backend = "s3" }, "unknown publisher.backend"},
		{"fixed without text", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Text.Mode = TextModeFixed
		}, "text.fixed"},
		{"unknown text mode", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Text.Mode = "random"
		}, "unknown text.mode"},
		{"bad color", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Render.TextColor = "#zzzzzz"
		}, "text_color"},
		{"https without cert", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Server.UseHTTPS = true
		}, "cert_path"},
		{"unknown fetch mode", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Report.FetchMode = "ftp"
		}, "fetch_mode"},
		{"zero font size", func(c *Config) {
			c.Publisher.Backend = BackendLocal
			c.Render.FontSize = 0
		}, "font_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("IMGUR_CLIENT_ID", " client-123 ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("PORT", "9000")
	t.Setenv("PUBLISHER_BACKEND", "drive")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "1, 2,bogus,3")

	cfg := GetDefaultConfig()
	cfg.ApplyEnv()

	if cfg.Publisher.ImgurClientID != "client-123" {
		t.Errorf("ImgurClientID = %q", cfg.Publisher.ImgurClientID)
	}
	if cfg.Telegram.Token != "token" {
		t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Publisher.Backend != BackendDrive {
		t.Errorf("Publisher.Backend = %q", cfg.Publisher.Backend)
	}
	want := []int64{1, 2, 3}
	if len(cfg.Telegram.AllowedUsers) != len(want) {
		t.Fatalf("AllowedUsers = %v, want %v", cfg.Telegram.AllowedUsers, want)
	}
	for i := range want {
		if cfg.Telegram.AllowedUsers[i] != want[i] {
			t.Errorf("AllowedUsers[%d] = %d, want %d", i, cfg.Telegram.AllowedUsers[i], want[i])
		}
	}
}

func TestKeepArtifacts(t *testing.T) {
	cfg := GetDefaultConfig()
	if cfg.KeepArtifacts() {
		t.Error("imgur backend should not keep artifacts by default")
	}
	cfg.Publisher.Backend = BackendLocal
	if !cfg.KeepArtifacts() {
		t.Error("local backend must keep artifacts")
	}
}
