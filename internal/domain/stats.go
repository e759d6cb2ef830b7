package domain

import "time"

// EngineStatus enumerates the Transformation Engine's lifecycle states.
type EngineStatus string

const (
	EngineInitializing      EngineStatus = "Initializing"
	EngineNoRulesLoaded     EngineStatus = "NoRulesLoaded"
	EngineNoValidRules      EngineStatus = "NoValidRules"
	EngineConfigErrorCached EngineStatus = "ConfigErrorCached"
	EngineRulesPartialValid EngineStatus = "RulesPartiallyValid"
	EngineReady             EngineStatus = "Ready"
)

// MobileStatus enumerates the Mobile Client's lifecycle states.
type MobileStatus string

const (
	MobileInitializing        MobileStatus = "Initializing"
	MobileConnected           MobileStatus = "Connected"
	MobileReceivingData       MobileStatus = "ReceivingData"
	MobileSendingRequests     MobileStatus = "SendingRequests"
	MobileInitializationFail  MobileStatus = "InitializationFailed"
	MobileSendError           MobileStatus = "SendError"
	MobileReceiveError        MobileStatus = "ReceiveError"
	MobileProcessingError     MobileStatus = "ProcessingError"
	MobileDisconnected        MobileStatus = "Disconnected"
)

// DesktopStatus enumerates the Desktop Client's lifecycle states. It mirrors
// the protocol state machine's state names where they're externally
// observable, collapsing internal-only states.
type DesktopStatus string

const (
	DesktopInitializing         DesktopStatus = "Initializing"
	DesktopDiscoveringPort      DesktopStatus = "DiscoveringPort"
	DesktopConnecting           DesktopStatus = "Connecting"
	DesktopAuthenticating       DesktopStatus = "Authenticating"
	DesktopConnected            DesktopStatus = "Connected"
	DesktopPortDiscoveryFailed  DesktopStatus = "PortDiscoveryFailed"
	DesktopConnectionFailed     DesktopStatus = "ConnectionFailed"
	DesktopAuthenticationFailed DesktopStatus = "AuthenticationFailed"
	DesktopInitializationFailed DesktopStatus = "InitializationFailed"
	DesktopSendError            DesktopStatus = "SendError"
	DesktopDisconnected         DesktopStatus = "Disconnected"
)

// ServiceStats is a per-component read-only snapshot, cheap to sample at UI
// cadence (<=10 Hz). CurrentEntity is an opaque last-known domain object
// carried for UI display (e.g. the last DesktopFrame or Ruleset summary).
type ServiceStats struct {
	Name          string
	Status        string
	IsHealthy     bool
	Uptime        time.Duration
	Counters      map[string]int64
	CurrentEntity interface{}
	LastError     string
}
