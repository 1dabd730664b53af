package interfaces

// DefaultProjectID is the warehouse project used when none is configured.
// It matches the placeholder project the BigQuery emulator setups ship with.
const DefaultProjectID = "your_project_id"

const (
	DefaultRequestTimeoutInSeconds = 30
	DefaultMaxConnsPerHost         = 512
)

type NetworkConfig struct {
	DefaultRequestTimeoutInSeconds int `json:"default_request_timeout_in_seconds"`
	MaxConnsPerHost                int `json:"max_conns_per_host"`
}

type ProxyType string

const (
	NoProxy     ProxyType = "none"
	HttpProxy   ProxyType = "http"
	Socks5Proxy ProxyType = "socks5"
	EnvProxy    ProxyType = "environment"
)

// ProxyConfig routes outbound insert calls through a proxy
type ProxyConfig struct {
	Type     ProxyType `json:"type"`
	URL      string    `json:"url"`
	Username string    `json:"username"`
	Password string    `json:"password"`
}

// ForwarderConfig configures the insert forwarder.
// ProjectID is fixed per deployment and never taken from the request.
type ForwarderConfig struct {
	ProjectID     string        `json:"project_id"`
	NetworkConfig NetworkConfig `json:"network_config"`
	ProxyConfig   *ProxyConfig  `json:"proxy_config,omitempty"`
}

// PushBQConfig is passed to pushbq.Init
type PushBQConfig struct {
	Forwarder ForwarderConfig
	Plugins   []Plugin
	Logger    Logger
}
