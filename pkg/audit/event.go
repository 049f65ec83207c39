// Package audit records signing, verification and timestamping
// operations in a tamper-evident log.
//
// Each event is one JSON line carrying the SHA-256 hash of the previous
// line, so removing or editing an entry breaks the chain. Events never
// contain key material; only certificate identifiers and digests are
// recorded. All timestamps are UTC.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// EventType is the category of an audit event.
type EventType string

const (
	EventCMSSign        EventType = "CMS_SIGN"
	EventCMSVerify      EventType = "CMS_VERIFY"
	EventTimestampAdded EventType = "TIMESTAMP_ADDED"
	EventTokenIssued    EventType = "TSP_TOKEN_ISSUED"
	EventCertVerify     EventType = "CERT_VERIFY"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

func resultOf(ok bool) Result {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// ErrInvalidEvent is returned when an event lacks a required field.
var ErrInvalidEvent = errors.New("invalid audit event")

// Actor identifies who ran the operation.
type Actor struct {
	Type string `json:"type"` // "user" or "service"
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Object identifies what the operation acted upon.
type Object struct {
	Type    string `json:"type"` // "cms", "certificate", "timestamp"
	Path    string `json:"path,omitempty"`
	Subject string `json:"subject,omitempty"` // signer certificate subject DN
	Serial  string `json:"serial,omitempty"`  // signer certificate serial, hex
	Digest  string `json:"digest,omitempty"`  // content or imprint digest, hex
}

// Context carries operation details.
type Context struct {
	Algorithm   string `json:"algorithm,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Detached    bool   `json:"detached,omitempty"`
	Signers     int    `json:"signers,omitempty"`
	SignerIndex int    `json:"signer_index,omitempty"`
	Policy      string `json:"policy,omitempty"`
	GenTime     string `json:"gen_time,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Event is one audit log entry.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash,omitempty"`
}

// now is replaced in tests.
var now = time.Now

// NewEvent creates an event stamped with the current time and the
// invoking user.
func NewEvent(eventType EventType, result Result) *Event {
	return &Event{
		EventType: eventType,
		Timestamp: now().UTC().Format(time.RFC3339),
		Actor:     currentActor(),
		Result:    result,
	}
}

func currentActor() Actor {
	host, _ := os.Hostname()
	id := os.Getenv("USER")
	if id == "" {
		id = os.Getenv("USERNAME")
	}
	if id == "" {
		id = "unknown"
	}
	return Actor{Type: "user", ID: id, Host: host}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return fmt.Errorf("%w: event_type is required", ErrInvalidEvent)
	case e.Timestamp == "":
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	case e.Actor.Type == "" || e.Actor.ID == "":
		return fmt.Errorf("%w: actor type and id are required", ErrInvalidEvent)
	case e.Result == "":
		return fmt.Errorf("%w: result is required", ErrInvalidEvent)
	}
	return nil
}

// CanonicalJSON returns the JSON that the event hash covers: the whole
// event without its own hash.
func (e *Event) CanonicalJSON() ([]byte, error) {
	c := *e
	c.Hash = ""
	return json.Marshal(&c)
}
