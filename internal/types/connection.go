package types

// ConnectionState is the push-transport lifecycle state.
type ConnectionState string

const (
	ConnectionIdle         ConnectionState = "idle"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionDegraded     ConnectionState = "degraded"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// DataLatency classifies how fresh the data reaching consumers is.
type DataLatency string

const (
	LatencyRealTime DataLatency = "real-time"
	LatencyDelayed  DataLatency = "delayed"
)
