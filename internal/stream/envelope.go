// Package stream implements the push-transport side of the market-watch
// client: wire envelope parsing, subscription-set diffing, and the connection
// controller state machine.
package stream

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/market-watch/internal/types"
)

// MessageType is the envelope type tag on the wire.
type MessageType string

const (
	MessagePing      MessageType = "system.ping"
	MessageStatus    MessageType = "system.status"
	MessageError     MessageType = "system.error"
	MessageQuote     MessageType = "market.quote"
	MessageTrade     MessageType = "market.trade"
	MessageAggregate MessageType = "market.aggregate"
)

// IsMarket reports whether the type is one of the three market kinds.
func (t MessageType) IsMarket() bool {
	return t == MessageQuote || t == MessageTrade || t == MessageAggregate
}

// StatusPayload is the parsed system.status message. Latency is empty when
// the server sent an unrecognized classification.
type StatusPayload struct {
	Latency         types.DataLatency
	ConnectionState string
	Message         string
}

// ErrorPayload is the parsed system.error message.
type ErrorPayload struct {
	Code    string
	Message string
}

// MarketPayload is the parsed body of a quote, trade, or aggregate message.
// Every numeric field is independently nullable; a present but non-numeric
// (or non-finite) value normalizes to None, never to zero.
type MarketPayload struct {
	Symbol       string
	EventAt      time.Time
	Timespan     string
	MarketStatus string
	Multiplier   optional.Option[float64]
	Bid          optional.Option[float64]
	Ask          optional.Option[float64]
	BidSize      optional.Option[float64]
	AskSize      optional.Option[float64]
	Price        optional.Option[float64]
	Last         optional.Option[float64]
	Size         optional.Option[float64]
	Change       optional.Option[float64]
	ChangePct    optional.Option[float64]
	Open         optional.Option[float64]
	High         optional.Option[float64]
	Low          optional.Option[float64]
	Close        optional.Option[float64]
	Volume       optional.Option[float64]
	VWAP         optional.Option[float64]
}

// Envelope is one recognized server-to-client message. Exactly one of the
// payload pointers is set, according to Type; ping has none.
type Envelope struct {
	Type   MessageType
	Status *StatusPayload
	Err    *ErrorPayload
	Market *MarketPayload
}

type rawEnvelope struct {
	Type   string         `json:"type"`
	TS     string         `json:"ts"`
	Source string         `json:"source"`
	Data   map[string]any `json:"data"`
}

// ParseEnvelope parses a raw wire frame into a typed envelope. It is a total
// function: malformed JSON, a missing type tag, an unrecognized type, or an
// incomplete market payload all return nil. It never panics.
func ParseEnvelope(raw []byte) *Envelope {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	messageType := strings.TrimSpace(env.Type)
	if messageType == "" {
		return nil
	}

	data := env.Data
	if data == nil {
		data = map[string]any{}
	}

	switch MessageType(messageType) {
	case MessagePing:
		return &Envelope{Type: MessagePing}

	case MessageStatus:
		return &Envelope{
			Type: MessageStatus,
			Status: &StatusPayload{
				Latency:         parseLatency(stringField(data, "latency")),
				ConnectionState: stringField(data, "connection_state"),
				Message:         stringField(data, "message"),
			},
		}

	case MessageError:
		return &Envelope{
			Type: MessageError,
			Err: &ErrorPayload{
				Code:    stringField(data, "code"),
				Message: stringField(data, "message"),
			},
		}

	case MessageQuote:
		market, ok := parseMarketCommon(data, env.TS)
		if !ok {
			return nil
		}

		market.Bid = numberField(data, "bid")
		market.Ask = numberField(data, "ask")
		market.BidSize = numberField(data, "bid_size")
		market.AskSize = numberField(data, "ask_size")

		return &Envelope{Type: MessageQuote, Market: market}

	case MessageTrade:
		market, ok := parseMarketCommon(data, env.TS)
		if !ok {
			return nil
		}

		market.Size = numberField(data, "size")

		return &Envelope{Type: MessageTrade, Market: market}

	case MessageAggregate:
		market, ok := parseMarketCommon(data, env.TS)
		if !ok {
			return nil
		}

		market.Timespan = stringField(data, "timespan")
		market.Multiplier = numberField(data, "multiplier")
		market.Close = numberField(data, "close")
		market.VWAP = numberField(data, "vwap")

		return &Envelope{Type: MessageAggregate, Market: market}

	default:
		return nil
	}
}

// parseMarketCommon extracts the fields shared by all market kinds: symbol,
// event timestamp, and the snapshot-relevant fields any kind may carry. A
// market message whose normalized symbol is empty is rejected.
func parseMarketCommon(data map[string]any, envelopeTS string) (*MarketPayload, bool) {
	symbol := types.NormalizeSymbol(stringField(data, "symbol"))
	if symbol == "" {
		return nil, false
	}

	return &MarketPayload{
		Symbol:       symbol,
		EventAt:      eventTime(stringField(data, "event_ts"), envelopeTS),
		MarketStatus: stringField(data, "market_status"),
		Last:         numberField(data, "last"),
		Price:        numberField(data, "price"),
		Change:       numberField(data, "change"),
		ChangePct:    numberField(data, "change_pct"),
		Open:         numberField(data, "open"),
		High:         numberField(data, "high"),
		Low:          numberField(data, "low"),
		Volume:       numberField(data, "volume"),
	}, true
}

// eventTime resolves the event timestamp: payload event_ts, then the
// envelope's outer ts, then now. A missing or unparsable timestamp never
// rejects the message.
func eventTime(eventTS, envelopeTS string) time.Time {
	if at, ok := parseTimestamp(eventTS); ok {
		return at
	}

	if at, ok := parseTimestamp(envelopeTS); ok {
		return at
	}

	return time.Now().UTC()
}

// ParseTimestamp parses an ISO8601 timestamp; the zero time stands in for
// anything unparsable so recency merges treat it as epoch 0.
func ParseTimestamp(value string) time.Time {
	if at, ok := parseTimestamp(value); ok {
		return at
	}

	return time.Time{}
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if at, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return at, true
	}

	// Fall back for timestamps without an explicit zone.
	if at, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return at.UTC(), true
	}

	return time.Time{}, false
}

func parseLatency(value string) types.DataLatency {
	switch strings.ToLower(value) {
	case string(types.LatencyRealTime):
		return types.LatencyRealTime
	case string(types.LatencyDelayed):
		return types.LatencyDelayed
	default:
		return ""
	}
}

// stringField returns the trimmed string at key, or "" when absent or not a
// string.
func stringField(data map[string]any, key string) string {
	value, ok := data[key].(string)
	if !ok {
		return ""
	}

	return strings.TrimSpace(value)
}

// numberField coerces the value at key to a finite float64. JSON numbers and
// numeric strings are accepted; anything else, including non-finite values,
// is None.
func numberField(data map[string]any, key string) optional.Option[float64] {
	switch value := data[key].(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return optional.None[float64]()
		}

		return optional.Some(value)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return optional.None[float64]()
		}

		return optional.Some(parsed)
	default:
		return optional.None[float64]()
	}
}
