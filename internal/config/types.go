// Package config parses the JSON-with-comments configuration document,
// applies defaults, validates it, and publishes immutable snapshots that
// every other component reads on demand.
package config

// Config is one complete, immutable configuration snapshot. A reload never
// mutates an existing Config; it produces a new one and the Store swaps the
// pointer atomically.
type Config struct {
	// Project names the calling agent's workspace; it seeds every task ID
	// (<project>-NNNN) and the notification title. Empty means "derive from
	// the working directory name at startup," matching the original tool's
	// own behavior of naming itself after whatever project it was invoked
	// from rather than requiring an explicit name.
	Project         string          `json:"project"`
	Notification    Notification    `json:"notification"`
	WebUI           WebUI           `json:"web_ui"`
	NetworkSecurity NetworkSecurity `json:"network_security"`
	Feedback        Feedback        `json:"feedback"`
	Queue           Queue           `json:"queue"`
	Logging         Logging         `json:"logging"`
}

// Notification controls the notification dispatcher's transports.
type Notification struct {
	Enabled               bool   `json:"enabled"`
	WebEnabled            bool   `json:"web_enabled"`
	AutoRequestPermission bool   `json:"auto_request_permission"`
	SoundEnabled          bool   `json:"sound_enabled"`
	SoundMute             bool   `json:"sound_mute"`
	SoundVolume           int    `json:"sound_volume"`
	MobileOptimized       bool   `json:"mobile_optimized"`
	MobileVibrate         bool   `json:"mobile_vibrate"`
	BarkEnabled           bool   `json:"bark_enabled"`
	BarkURL               string `json:"bark_url"`
	BarkDeviceKey         string `json:"bark_device_key"`
	BarkIcon              string `json:"bark_icon"`
	BarkAction            string `json:"bark_action"` // "none" | "url" | "copy"
	SystemNotifyEnabled   bool   `json:"system_notify_enabled"`
}

// WebUI holds the HTTP surface's settings. Port is the bind port; the bind
// address comes from NetworkSecurity.BindInterface. Host, Debug, MaxRetries
// and RetryDelay are kept in the document but not read by the server.
type WebUI struct {
	Host       string  `json:"host"`
	Port       int     `json:"port"`
	Debug      bool    `json:"debug"`
	MaxRetries int     `json:"max_retries"`
	RetryDelay float64 `json:"retry_delay"`
}

// NetworkSecurity is the access-control policy applied to every HTTP request.
type NetworkSecurity struct {
	BindInterface       string   `json:"bind_interface"`
	AllowedNetworks     []string `json:"allowed_networks"`
	BlockedIPs          []string `json:"blocked_ips"`
	EnableAccessControl bool     `json:"enable_access_control"`
}

// Feedback controls the feedback tool entry's blocking behaviour and the
// canned texts used by auto-resubmit.
type Feedback struct {
	// Timeout is the overall bound, in seconds, that one interactive_feedback
	// call may block for before the rendezvous wait gives up.
	Timeout int `json:"timeout"`
	// DefaultAutoResubmitTimeout, in seconds, is used when a call omits
	// auto_resubmit_timeout. Zero disables auto-resubmit by default.
	DefaultAutoResubmitTimeout int `json:"default_auto_resubmit_timeout"`
	// ResubmitPrompt is the text used as the submitted result when the
	// scheduler's timer fires before a human responds.
	ResubmitPrompt string `json:"resubmit_prompt"`
	// PromptSuffix is a hint text served to the UI by
	// GET /api/get-feedback-prompts alongside ResubmitPrompt; the server does
	// not append it to any prompt itself.
	PromptSuffix string `json:"prompt_suffix"`
}

// Queue controls the task queue's retention policy. This section has no
// equivalent in the notification/web_ui/network_security schema; it exists
// to bound in-memory growth of a process that never persists to disk.
type Queue struct {
	MaxTasks             int `json:"max_tasks"`
	EvictionGraceSeconds int `json:"eviction_grace_seconds"`
}

// Logging controls the structured logger.
type Logging struct {
	Level   string `json:"level"`
	Service string `json:"service"`
	Async   bool   `json:"async"`
}

// Defaults returns the full default configuration document. Every option
// has a typed default, per the data model.
func Defaults() Config {
	return Config{
		Project: "",
		Notification: Notification{
			Enabled:               true,
			WebEnabled:            true,
			AutoRequestPermission: true,
			SoundEnabled:          true,
			SoundMute:             false,
			SoundVolume:           80,
			MobileOptimized:       true,
			MobileVibrate:         true,
			BarkEnabled:           false,
			BarkURL:               "https://api.day.app/push",
			BarkDeviceKey:         "",
			BarkIcon:              "",
			BarkAction:            "none",
			SystemNotifyEnabled:   true,
		},
		WebUI: WebUI{
			Host:       "127.0.0.1",
			Port:       8080,
			Debug:      false,
			MaxRetries: 3,
			RetryDelay: 1.0,
		},
		NetworkSecurity: NetworkSecurity{
			BindInterface: "0.0.0.0",
			AllowedNetworks: []string{
				"127.0.0.0/8",
				"::1/128",
				"192.168.0.0/16",
				"10.0.0.0/8",
				"172.16.0.0/12",
			},
			BlockedIPs:          []string{},
			EnableAccessControl: true,
		},
		Feedback: Feedback{
			Timeout:                    600,
			DefaultAutoResubmitTimeout: 290,
			ResubmitPrompt:             "No human feedback was received before the timeout. Proceed using your best judgment based on the information already gathered.",
			PromptSuffix:               "If you are not given feedback in time, proceed using your best judgment.",
		},
		Queue: Queue{
			MaxTasks:             10,
			EvictionGraceSeconds: 10,
		},
		Logging: Logging{
			Level:   "info",
			Service: "ai-intervention-agent",
			Async:   false,
		},
	}
}
