// Package webhook verifies svix signed identity provider webhooks and
// decodes their user events.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Header names set by the sender.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Tolerance is how far a timestamp may drift from the local clock. It
// matches the window svix enforces.
const Tolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingHeaders   = errors.New("missing webhook headers")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Verifier checks svix signatures for one signing secret.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier takes a signing secret of the form whsec_<base64>.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook secret: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// Sign returns the signature header value the sender would set.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) (string, error) {
	return v.wh.Sign(id, ts, body)
}

// Verify checks the signature headers against body. Headers are looked at
// first so callers can tell a missing or stale message from a forged one.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	id, ts, sigs := h.Get(HeaderID), h.Get(HeaderTimestamp), h.Get(HeaderSignature)
	if id == "" || ts == "" || sigs == "" {
		return ErrMissingHeaders
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if drift := time.Since(time.Unix(sec, 0)); drift > Tolerance || drift < -Tolerance {
		return ErrStaleTimestamp
	}

	if err := v.wh.Verify(body, h); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Event types handled by the server.
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the payload of user events. Deleted users only carry the id.
type UserData struct {
	ID                    string         `json:"id"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              string         `json:"image_url"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	// unix milliseconds, zero when absent
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

func ParseEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return nil, errors.New("event type is required")
	}
	return &e, nil
}

func (e *Event) User() (*UserData, error) {
	var u UserData
	if err := json.Unmarshal(e.Data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// PrimaryEmail returns the address whose id is the primary one.
func (u *UserData) PrimaryEmail() (string, bool) {
	if u.PrimaryEmailAddressID == nil {
		return "", false
	}
	for _, e := range u.EmailAddresses {
		if e.ID == *u.PrimaryEmailAddressID && e.EmailAddress != "" {
			return e.EmailAddress, true
		}
	}
	return "", false
}

func (u *UserData) FullName() string {
	var parts []string
	for _, p := range []*string{u.FirstName, u.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}
