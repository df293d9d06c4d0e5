package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoutingKeyLedgerRefreshed is the routing key of LedgerRefreshedMessage.
const RoutingKeyLedgerRefreshed = "ledger.refreshed"

// RefreshRequestMessage asks the server to drop its cached ledger and
// read the source again.
type RefreshRequestMessage struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRefreshRequestMessage creates a refresh request with a fresh ID
func NewRefreshRequestMessage(requestedBy, reason string) *RefreshRequestMessage {
	return &RefreshRequestMessage{
		ID:          uuid.NewString(),
		RequestedBy: requestedBy,
		Reason:      reason,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshRequestMessageFromJSON decodes a refresh request
func RefreshRequestMessageFromJSON(data []byte) (*RefreshRequestMessage, error) {
	var msg RefreshRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LedgerRefreshedMessage announces a successful ledger refresh.
type LedgerRefreshedMessage struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Generation uint64    `json:"generation"`
	Rows       int       `json:"rows"`
	Dropped    int       `json:"dropped"`
	Coerced    int       `json:"coerced"`
	Periods    []string  `json:"periods"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NewLedgerRefreshedMessage creates a refresh event with a fresh ID
func NewLedgerRefreshedMessage(source string, generation uint64, rows, dropped, coerced int, periods []string, fetchedAt time.Time) *LedgerRefreshedMessage {
	return &LedgerRefreshedMessage{
		ID:         uuid.NewString(),
		Source:     source,
		Generation: generation,
		Rows:       rows,
		Dropped:    dropped,
		Coerced:    coerced,
		Periods:    periods,
		FetchedAt:  fetchedAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerRefreshedMessageFromJSON decodes a refresh event
func LedgerRefreshedMessageFromJSON(data []byte) (*LedgerRefreshedMessage, error) {
	var msg LedgerRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
