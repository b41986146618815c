package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
)

const (
	configFileName = "config.jsonc"
	appDirName     = "ai-intervention-agent"
)

// Store owns the one logical configuration document: it discovers the file,
// parses and validates it, publishes immutable snapshots, watches the file
// for external edits, and serializes write-back from the HTTP surface.
type Store struct {
	path string
	log  *slog.Logger

	snapshot atomic.Pointer[Config]

	writeMu sync.Mutex // serializes reload and write-back so they never interleave
	rawText string     // last successfully parsed file content, used by write-back

	watcher *fileWatcher
}

// Open discovers the configuration document using the three-tier order
// (working directory, per-user config directory, create-with-defaults),
// loads it, and starts watching it for changes. explicitPath overrides
// discovery when non-empty (used by --config-style CLI overrides, if any);
// an explicit path that does not exist yet is created with the defaults.
func Open(explicitPath string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	path, created, err := discoverConfigPath(explicitPath)
	if err != nil {
		return nil, fmt.Errorf("locate config file: %w", err)
	}

	s := &Store{path: path, log: log}

	if created {
		if err := s.writeDefaultFile(); err != nil {
			return nil, fmt.Errorf("create default config at %s: %w", path, err)
		}
	}

	if err := s.load(); err != nil {
		// A failed initial load is fatal only if the file could not even be
		// produced with defaults; otherwise fall back to pure defaults so
		// the process still starts per the spec's "never crashes on bad
		// input" contract.
		s.log.Warn("config parse failed on startup, using defaults", "path", path, "error", err)
		def := Defaults()
		s.snapshot.Store(&def)
	}

	w, err := newFileWatcher(path, s.reload, log)
	if err != nil {
		s.log.Warn("config file watcher unavailable, live reload disabled", "error", err)
	} else {
		s.watcher = w
	}

	return s, nil
}

// Snapshot returns the currently published, immutable configuration. Callers
// must treat the returned value as read-only.
func (s *Store) Snapshot() *Config {
	return s.snapshot.Load()
}

// OverrideFeedbackTimeout replaces the in-memory feedback.timeout without
// touching the file on disk. It exists for the --timeout CLI flag, a
// process-level override that should never be written back to the config
// file a reload might later re-read.
func (s *Store) OverrideFeedbackTimeout(seconds int) {
	cur := *s.snapshot.Load()
	cur.Feedback.Timeout = seconds
	s.snapshot.Store(&cur)
}

// Close stops the file watcher. It does not alter the published snapshot.
func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// load reads and parses the file from disk and publishes it as the current
// snapshot, merging onto defaults for any missing keys. Unknown keys are
// preserved in rawText for write-back but do not reach the typed Config.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path) //nolint:gosec // path comes from discovery, not request input
	if err != nil {
		return err
	}
	cfg, err := decodeAndValidate(data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	s.rawText = string(data)
	s.writeMu.Unlock()
	s.snapshot.Store(cfg)
	return nil
}

// reload is invoked by the file watcher on every debounced change event. A
// parse or validation failure is logged and the previously published
// snapshot remains in effect — per the spec, the store never crashes the
// process on bad input.
func (s *Store) reload() {
	s.writeMu.Lock()
	data, err := os.ReadFile(s.path) //nolint:gosec // path comes from discovery, not request input
	if err != nil {
		s.writeMu.Unlock()
		s.log.Warn("config reload: read failed, keeping previous snapshot", "error", err)
		return
	}
	cfg, err := decodeAndValidate(data)
	if err != nil {
		s.writeMu.Unlock()
		s.log.Warn("config reload: parse failed, keeping previous snapshot", "error", err)
		return
	}
	s.rawText = string(data)
	s.writeMu.Unlock()

	s.snapshot.Store(cfg)
	s.log.Info("config reloaded", "path", s.path)
}

// decodeAndValidate parses JSONC bytes, deep-merges the result onto the
// default document (so missing keys keep their default, present keys
// override), decodes into a typed Config, and validates ranges.
func decodeAndValidate(data []byte) (*Config, error) {
	parsed, err := parseJSONC(data)
	if err != nil {
		return nil, fmt.Errorf("parse jsonc: %w", err)
	}

	defaultsMap, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}
	merged := deepMerge(defaultsMap, parsed)

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(mergedJSON, &cfg); err != nil {
		return nil, fmt.Errorf("decode merged config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate enforces the ranges in the data model. Out-of-range volumes are
// clamped rather than rejected; everything else is a hard validation error
// that causes the caller to keep the previous snapshot.
func validate(cfg *Config) error {
	if cfg.Notification.SoundVolume < 0 {
		cfg.Notification.SoundVolume = 0
	}
	if cfg.Notification.SoundVolume > 100 {
		cfg.Notification.SoundVolume = 100
	}
	if cfg.WebUI.Port < 1 || cfg.WebUI.Port > 65535 {
		return fmt.Errorf("%w: web_ui.port must be in [1, 65535], got %d", ErrInvalidConfig, cfg.WebUI.Port)
	}
	if cfg.Feedback.Timeout <= 0 {
		return fmt.Errorf("%w: feedback.timeout must be > 0", ErrInvalidConfig)
	}
	for _, cidr := range cfg.NetworkSecurity.AllowedNetworks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("%w: network_security.allowed_networks contains invalid CIDR %q: %v", ErrInvalidConfig, cidr, err)
		}
	}
	for _, ip := range cfg.NetworkSecurity.BlockedIPs {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("%w: network_security.blocked_ips contains invalid IP %q", ErrInvalidConfig, ip)
		}
	}
	if cfg.Queue.MaxTasks < 1 {
		return fmt.Errorf("%w: queue.max_tasks must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMerge overlays override onto base, recursing into nested objects.
// Scalars and arrays in override replace the base value outright; base keys
// absent from override are kept, which is how missing keys keep their
// defaults. Keys unknown to Config are carried into the result from override
// but never reach the typed struct.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if baseChild, ok := out[k].(map[string]any); ok {
			if overrideChild, ok := v.(map[string]any); ok {
				out[k] = deepMerge(baseChild, overrideChild)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func discoverConfigPath(explicitPath string) (path string, created bool, err error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return explicitPath, true, nil
		}
		return explicitPath, false, nil
	}

	cwdPath := filepath.Join(".", configFileName)
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath, false, nil
	}

	userDir, err := os.UserConfigDir()
	if err != nil {
		return "", false, fmt.Errorf("determine user config dir: %w", err)
	}
	dir := filepath.Join(userDir, appDirName)
	userPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(userPath); err == nil {
		return userPath, false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create config dir %s: %w", dir, err)
	}
	return userPath, true, nil
}

func (s *Store) writeDefaultFile() error {
	data, err := renderDefaultDocument()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644) //nolint:gosec // config file is not sensitive
}

func renderDefaultDocument() ([]byte, error) {
	def := Defaults()
	return json.MarshalIndent(def, "", "  ")
}

// ErrInvalidConfig wraps every validation failure produced by validate and
// by ClampPort, so callers across package boundaries (the
// HTTP surface's config write-back handler, in particular) can distinguish
// a malformed request from an internal failure with errors.Is.
var ErrInvalidConfig = fmt.Errorf("invalid configuration")

// ClampPort is a small validation helper exposed for the command's --port
// flag handling, kept consistent with the config store's own rule.
func ClampPort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number", ErrInvalidConfig)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%w: port must be in [1, 65535]", ErrInvalidConfig)
	}
	return p, nil
}
