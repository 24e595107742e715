package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerName      string     `json:"player_name"`
	RoomPreference  string     `json:"room_preference,omitempty"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerID        string     `json:"player_id"`
	RoomID          string     `json:"room_id"`
	ResumeToken     string     `json:"resume_token"`
	Balance         float64    `json:"balance"`
	RoomParams      RoomParams `json:"room_params"`
	CatalogDigest   string     `json:"catalog_digest"`
}

type RoomParams struct {
	Rows       int `json:"rows"`
	Cols       int `json:"cols"`
	TickRateHz int `json:"tick_rate_hz"`
	DayTicks   int `json:"day_ticks"`
}

// CATALOG (server -> client): the building catalog as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Digest          string      `json:"digest"`
	Data            interface{} `json:"data"`
}

// TX (client -> server): one mutating transaction request.
type TxMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	TxType          string  `json:"tx_type"`
	Row             int     `json:"row"`
	Col             int     `json:"col"`
	BuildingType    string  `json:"building_type,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
}

// TX_RESULT (server -> requesting client)
type TxResultMsg struct {
	Type     string   `json:"type"`
	Ref      string   `json:"ref"`
	OK       bool     `json:"ok"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message,omitempty"`
	Affected [][2]int `json:"affected,omitempty"`
	Tick     uint64   `json:"tick"`
	Degraded bool     `json:"degraded,omitempty"`
}

// Event is a loosely-typed broadcast payload. Keys depend on the event type.
type Event map[string]any
