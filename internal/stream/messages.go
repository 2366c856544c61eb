package stream

import (
	"math"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/V0rtexyz/FinDash/internal/domain"
)

var validate = validator.New()

// Wire type tags.
const (
	typeSubscribe      = "subscribe:rates"
	typeUnsubscribe    = "unsubscribe:rates"
	typeRateUpdate     = "rate:update"
	typeAlertTriggered = "alert:triggered"
)

// symbolsMessage is the outbound subscription change payload.
type symbolsMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// rateUpdateMessage is the inbound price push payload.
type rateUpdateMessage struct {
	Type      string  `json:"type" validate:"required"`
	Symbol    string  `json:"symbol" validate:"required"`
	Price     float64 `json:"price" validate:"required,gt=0"`
	Change24h float64 `json:"change24h"`
	Timestamp int64   `json:"timestamp"`
}

// alertTriggeredMessage is the outbound trigger push payload.
type alertTriggeredMessage struct {
	Type      string  `json:"type"`
	UserID    string  `json:"userId"`
	Symbol    string  `json:"symbol"`
	Condition string  `json:"condition"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Message   string  `json:"message"`
}

func encodeSubscribe(symbols []string) ([]byte, error) {
	return json.Marshal(symbolsMessage{Type: typeSubscribe, Symbols: symbols})
}

func encodeUnsubscribe(symbols []string) ([]byte, error) {
	return json.Marshal(symbolsMessage{Type: typeUnsubscribe, Symbols: symbols})
}

func encodeAlertTriggered(event domain.TriggerEvent) ([]byte, error) {
	return json.Marshal(alertTriggeredMessage{
		Type:      typeAlertTriggered,
		UserID:    event.UserID,
		Symbol:    event.Symbol,
		Condition: event.Condition.String(),
		Target:    event.Target,
		Current:   event.Current,
		Message:   event.Message,
	})
}

// decodeRateUpdate parses an inbound frame. Returns false for anything that
// is not a well-formed rate update with a symbol and a positive price.
func decodeRateUpdate(data []byte) (domain.RateUpdate, bool) {
	var msg rateUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.RateUpdate{}, false
	}
	if msg.Type != typeRateUpdate {
		return domain.RateUpdate{}, false
	}
	if err := validate.Struct(&msg); err != nil {
		return domain.RateUpdate{}, false
	}
	// gt=0 rejects NaN but lets +Inf through.
	if math.IsInf(msg.Price, 0) {
		return domain.RateUpdate{}, false
	}

	return domain.RateUpdate{
		Symbol:      msg.Symbol,
		Price:       msg.Price,
		Change24h:   msg.Change24h,
		TimestampMs: msg.Timestamp,
	}, true
}
