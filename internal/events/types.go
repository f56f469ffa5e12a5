package events

import "time"

// Event enumerates high-level topics inside the bot.
type Event string

const (
	EventBalanceUpdate  Event = "balance_update"
	EventCandidates     Event = "candidates"
	EventSignal         Event = "signal"
	EventPositionOpened Event = "position_opened"
	EventPositionClosed Event = "position_closed"
	EventRiskAlert      Event = "risk_alert"
	EventCycleError     Event = "cycle_error"
	EventBotStopped     Event = "bot_stopped"
)

// BalancePayload carries the free quote balance at cycle start.
type BalancePayload struct {
	Asset   string    `json:"asset"`
	Free    float64   `json:"free"`
	Time    time.Time `json:"time"`
	Testnet bool      `json:"testnet"`
}

// CandidatesPayload carries the instruments selected for a scan.
type CandidatesPayload struct {
	Instruments []string  `json:"instruments"`
	Time        time.Time `json:"time"`
}

// SignalPayload carries one analyzer decision worth reporting.
type SignalPayload struct {
	Instrument string    `json:"instrument"`
	Direction  string    `json:"direction"`
	LongScore  float64   `json:"long_score"`
	ShortScore float64   `json:"short_score"`
	Time       time.Time `json:"time"`
}

// PositionPayload carries an open or close notification.
type PositionPayload struct {
	Instrument string    `json:"instrument"`
	Side       string    `json:"side"`
	Amount     float64   `json:"amount"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	PnL        float64   `json:"pnl,omitempty"`
	ROI        float64   `json:"roi,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Time       time.Time `json:"time"`
}

// ErrorPayload carries a non-fatal cycle failure.
type ErrorPayload struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
