package domain

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Supporter is a registered collector identity. The pair (ClientID, PublicKey)
// is the identity key; Version is overwritten on every verified request.
type Supporter struct {
	ClientID  string    `json:"clientId"`
	PublicKey string    `json:"publicKey"`
	KeyTime   time.Time `json:"keyTime"`
	Version   string    `json:"version,omitempty"`
}

// Item is one element of a submitted batch.
type Item struct {
	Element     string    `json:"element"`
	Href        string    `json:"href" validate:"required,max=4096"`
	Incremental Sequence  `json:"incremental"`
	TagID       string    `json:"tagId,omitempty"`
	ClientTime  Timestamp `json:"clientTime,omitempty"`
}

// Artifact is the persisted metadata record of an Item. The raw element is
// stored separately in the blob store at BlobPath.
type Artifact struct {
	ID          string    `json:"id"`
	Href        string    `json:"href"`
	IsVideo     bool      `json:"isVideo"`
	VideoID     string    `json:"videoId,omitempty"`
	BlobPath    string    `json:"htmlOnDisk"`
	Incremental Sequence  `json:"incremental"`
	ClientID    string    `json:"clientId"`
	PublicKey   string    `json:"publicKey"`
	TagID       string    `json:"tagId,omitempty"`
	ClientTime  time.Time `json:"clientTime"`
	SavingTime  time.Time `json:"savingTime"`
}

// Headers is the validated request metadata bundle.
type Headers struct {
	Length    string
	Build     string
	Version   string
	ClientID  string
	PublicKey string
	Signature string
}

// Alarm describes an internal failure forwarded to the alarm channel.
type Alarm struct {
	Caller string    `json:"caller"`
	What   string    `json:"what"`
	Info   string    `json:"info"`
	Time   time.Time `json:"time"`
}

// VersionUpdate records the client version last seen for an identity.
type VersionUpdate struct {
	ClientID  string
	PublicKey string
	Version   string
}

// Sequence is the client's per-item sequence value, kept as the raw JSON it
// arrived as and echoed back unchanged. An absent value encodes as null.
type Sequence string

func (q *Sequence) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*q = ""
		return nil
	}
	*q = Sequence(b)
	return nil
}

func (q Sequence) MarshalJSON() ([]byte, error) {
	if q == "" {
		return []byte("null"), nil
	}
	return []byte(q), nil
}

// Int64 projects the value onto an integer for storage. Integral numbers
// (also written as 3.0 or 1e3) and quoted integers convert; anything else
// reports false.
func (q Sequence) Int64() (int64, bool) {
	s := string(q)
	if len(s) > 1 && s[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return 0, false
		}
		s = strings.TrimSpace(unq)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Timestamp is a client-reported time as received on the wire: either a
// JSON string or a bare number (epoch milliseconds).
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	switch {
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
	case string(b) == "null":
		*t = ""
	default:
		*t = Timestamp(b)
	}
	return nil
}

// Time parses the timestamp, see ParseClientTime.
func (t Timestamp) Time() time.Time { return ParseClientTime(string(t)) }

// ParseClientTime accepts RFC 3339 timestamps or epoch milliseconds.
// Anything else yields the zero time.
func ParseClientTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
