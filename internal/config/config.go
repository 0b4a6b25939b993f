package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxDownloadClients is the number of download client slots read from the environment
const MaxDownloadClients = 3

// DownloadClientConfig describes one download client slot
type DownloadClientConfig struct {
	Slot     int
	Enabled  bool
	Type     string // qbittorrent, transmission or sabnzbd
	URL      string
	Username string
	Password string
	APIKey   string
}

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort string

	// Library defaults, used to seed the settings row on first boot
	MediaLibraryPath      string
	LibraryMode           string
	SymlinkToMkvValue     int
	SymlinkToMkvUnit      string
	MkvToSymlinkValue     int
	MkvToSymlinkUnit      string
	PendingSymlinkTimeout time.Duration

	// Sonarr
	SonarrURL    string
	SonarrAPIKey string

	// Radarr
	RadarrURL    string
	RadarrAPIKey string

	// Jellyfin
	JellyfinURL    string
	JellyfinAPIKey string
	JellyfinUserID string

	// Jellyseerr
	JellyseerrURL    string
	JellyseerrAPIKey string

	DownloadClients []DownloadClientConfig

	// Outbound HTTP
	HTTPTimeout       time.Duration
	HTTPMaxRetries    int
	RequestsPerSecond float64

	// Background loops
	LibraryScanInterval     time.Duration
	LibraryScanDelay        time.Duration
	DownloadCheckInterval   time.Duration
	WatchCheckInterval      time.Duration
	TransitionCheckInterval time.Duration

	// Paths
	DatabaseFile string // $CONFIG_DIR/storarr.db

	// Logging
	LogLevel  string
	LogPretty bool

	// Tracing
	TracingEnabled bool
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	setDefaults()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "storarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		ServerPort: viper.GetString("SERVER_PORT"),

		MediaLibraryPath:      viper.GetString("MEDIA_LIBRARY_PATH"),
		LibraryMode:           viper.GetString("LIBRARY_MODE"),
		SymlinkToMkvValue:     viper.GetInt("SYMLINK_TO_MKV_VALUE"),
		SymlinkToMkvUnit:      viper.GetString("SYMLINK_TO_MKV_UNIT"),
		MkvToSymlinkValue:     viper.GetInt("MKV_TO_SYMLINK_VALUE"),
		MkvToSymlinkUnit:      viper.GetString("MKV_TO_SYMLINK_UNIT"),
		PendingSymlinkTimeout: viper.GetDuration("PENDING_SYMLINK_TIMEOUT"),

		SonarrURL:    viper.GetString("SONARR_URL"),
		SonarrAPIKey: viper.GetString("SONARR_API_KEY"),

		RadarrURL:    viper.GetString("RADARR_URL"),
		RadarrAPIKey: viper.GetString("RADARR_API_KEY"),

		JellyfinURL:    viper.GetString("JELLYFIN_URL"),
		JellyfinAPIKey: viper.GetString("JELLYFIN_API_KEY"),
		JellyfinUserID: viper.GetString("JELLYFIN_USER_ID"),

		JellyseerrURL:    viper.GetString("JELLYSEERR_URL"),
		JellyseerrAPIKey: viper.GetString("JELLYSEERR_API_KEY"),

		DownloadClients: loadDownloadClients(),

		HTTPTimeout:       viper.GetDuration("HTTP_TIMEOUT"),
		HTTPMaxRetries:    viper.GetInt("HTTP_MAX_RETRIES"),
		RequestsPerSecond: viper.GetFloat64("HTTP_REQUESTS_PER_SECOND"),

		LibraryScanInterval:     viper.GetDuration("LIBRARY_SCAN_INTERVAL"),
		LibraryScanDelay:        viper.GetDuration("LIBRARY_SCAN_DELAY"),
		DownloadCheckInterval:   viper.GetDuration("DOWNLOAD_CHECK_INTERVAL"),
		WatchCheckInterval:      viper.GetDuration("WATCH_CHECK_INTERVAL"),
		TransitionCheckInterval: viper.GetDuration("TRANSITION_CHECK_INTERVAL"),

		DatabaseFile: filepath.Join(configDir, "storarr.db"),

		LogLevel:  viper.GetString("LOG_LEVEL"),
		LogPretty: viper.GetBool("LOG_PRETTY"),

		TracingEnabled: viper.GetBool("TRACING_ENABLED"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8686")
	viper.SetDefault("LIBRARY_MODE", "NewContentOnly")
	viper.SetDefault("SYMLINK_TO_MKV_VALUE", 7)
	viper.SetDefault("SYMLINK_TO_MKV_UNIT", "Days")
	viper.SetDefault("MKV_TO_SYMLINK_VALUE", 30)
	viper.SetDefault("MKV_TO_SYMLINK_UNIT", "Days")
	viper.SetDefault("PENDING_SYMLINK_TIMEOUT", "6h")
	viper.SetDefault("HTTP_TIMEOUT", "15s")
	viper.SetDefault("HTTP_MAX_RETRIES", 2)
	viper.SetDefault("HTTP_REQUESTS_PER_SECOND", 5)
	viper.SetDefault("LIBRARY_SCAN_INTERVAL", "15m")
	viper.SetDefault("LIBRARY_SCAN_DELAY", "30s")
	viper.SetDefault("DOWNLOAD_CHECK_INTERVAL", "30s")
	viper.SetDefault("WATCH_CHECK_INTERVAL", "5m")
	viper.SetDefault("TRANSITION_CHECK_INTERVAL", "1m")
	viper.SetDefault("LOG_LEVEL", "info")
}

func loadDownloadClients() []DownloadClientConfig {
	var clients []DownloadClientConfig
	for slot := 1; slot <= MaxDownloadClients; slot++ {
		prefix := fmt.Sprintf("DOWNLOAD_CLIENT_%d_", slot)
		url := viper.GetString(prefix + "URL")
		if url == "" {
			continue
		}
		viper.SetDefault(prefix+"ENABLED", true)
		clients = append(clients, DownloadClientConfig{
			Slot:     slot,
			Enabled:  viper.GetBool(prefix + "ENABLED"),
			Type:     strings.ToLower(viper.GetString(prefix + "TYPE")),
			URL:      url,
			Username: viper.GetString(prefix + "USERNAME"),
			Password: viper.GetString(prefix + "PASSWORD"),
			APIKey:   viper.GetString(prefix + "API_KEY"),
		})
	}
	return clients
}

func (c *Config) validate() error {
	if c.HTTPTimeout <= 0 || c.HTTPTimeout > 30*time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be between 1s and 30s, got %s", c.HTTPTimeout)
	}
	intervals := map[string]time.Duration{
		"LIBRARY_SCAN_INTERVAL":     c.LibraryScanInterval,
		"DOWNLOAD_CHECK_INTERVAL":   c.DownloadCheckInterval,
		"WATCH_CHECK_INTERVAL":      c.WatchCheckInterval,
		"TRANSITION_CHECK_INTERVAL": c.TransitionCheckInterval,
	}
	for name, interval := range intervals {
		if interval < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %s", name, interval)
		}
	}
	for _, dc := range c.DownloadClients {
		switch dc.Type {
		case "qbittorrent", "transmission", "sabnzbd":
		default:
			return fmt.Errorf("DOWNLOAD_CLIENT_%d_TYPE %q is not supported", dc.Slot, dc.Type)
		}
	}
	return nil
}
