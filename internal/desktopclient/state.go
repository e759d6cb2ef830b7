// Package desktopclient implements the Desktop Client: a protocol state
// machine that discovers, connects to, authenticates with, and streams
// DesktopFrames to the avatar application over a full-duplex WebSocket
// transport.
package desktopclient

// State is one node of the protocol state machine described in spec §4.D.
type State string

const (
	StateDisconnected    State = "Disconnected"
	StateDiscovering     State = "Discovering"
	StateConnecting      State = "Connecting"
	StateAcquiringToken  State = "AcquiringToken"
	StateAuthenticating  State = "Authenticating"
	StateConnected       State = "Connected"
	StateSendFailing     State = "SendFailing"
	StateClosing         State = "Closing"
	StateFailed          State = "Failed"
)
