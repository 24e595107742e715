package protocol

import "encoding/json"

const Version = "1.2"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeCatalog  = "CATALOG"
	TypeTx       = "TX"
	TypeTxResult = "TX_RESULT"

	// Broadcast events (server -> all room members).
	TypeStats          = "STATS"
	TypeSupplyDemand   = "SUPPLY_DEMAND"
	TypePerfDelta      = "PERF_DELTA"
	TypeLandValueEvent = "LAND_VALUE_EVENT"
)

// Transaction types carried in a TX message.
const (
	TxBuild      = "BUILD"
	TxDemolish   = "DEMOLISH"
	TxRepair     = "REPAIR"
	TxRateChange = "RATE_CHANGE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
