// Package console defines the admin resources managed from the consent
// console: compliance rules, customers, guardian consents, privacy notices
// and topic preferences.
package console

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrValidation is wrapped by every validation failure.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func validEmail(field, value string) error {
	if err := required(field, value); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return invalid("%s %q is not a valid address", field, value)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// Regulations a rule can implement.
const (
	RegulationGDPR  = "GDPR"
	RegulationCCPA  = "CCPA"
	RegulationLGPD  = "LGPD"
	RegulationCOPPA = "COPPA"
	RegulationPDPA  = "PDPA"
)

// Rule is a compliance rule enforced by the backend.
type Rule struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Regulation  string     `json:"regulation"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Validate checks the rule before it is sent to the backend.
func (r Rule) Validate() error {
	if err := required("name", r.Name); err != nil {
		return err
	}
	return oneOf("regulation", r.Regulation,
		RegulationGDPR, RegulationCCPA, RegulationLGPD, RegulationCOPPA, RegulationPDPA)
}

// SearchFields returns the text matched by free-text search.
func (r Rule) SearchFields() []string { return []string{r.Name, r.Description, r.Regulation} }

// Category returns the regulation.
func (r Rule) Category() string { return r.Regulation }

// Customer statuses.
const (
	CustomerActive    = "active"
	CustomerInactive  = "inactive"
	CustomerSuspended = "suspended"
)

// Customer is a data subject known to the console.
type Customer struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Validate checks the customer before it is sent to the backend.
func (c Customer) Validate() error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	if err := validEmail("email", c.Email); err != nil {
		return err
	}
	return oneOf("status", c.Status, CustomerActive, CustomerInactive, CustomerSuspended)
}

// SearchFields returns the text matched by free-text search.
func (c Customer) SearchFields() []string { return []string{c.Name, c.Email, c.Phone} }

// Category returns the customer status.
func (c Customer) Category() string { return c.Status }

// Guardian consent statuses.
const (
	ConsentPending  = "pending"
	ConsentApproved = "approved"
	ConsentDenied   = "denied"
	ConsentRevoked  = "revoked"
)

// AdultAge is the age from which no guardian consent is needed.
const AdultAge = 18

// GuardianConsent records a guardian's consent on behalf of a minor.
type GuardianConsent struct {
	ID            string     `json:"id,omitempty"`
	MinorName     string     `json:"minorName"`
	MinorAge      int        `json:"minorAge"`
	GuardianName  string     `json:"guardianName"`
	GuardianEmail string     `json:"guardianEmail"`
	Relationship  string     `json:"relationship"`
	Purpose       string     `json:"purpose,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// Validate checks the consent before it is sent to the backend.
func (g GuardianConsent) Validate() error {
	if err := required("minorName", g.MinorName); err != nil {
		return err
	}
	if g.MinorAge < 0 || g.MinorAge >= AdultAge {
		return invalid("minorAge must be between 0 and %d, got %d", AdultAge-1, g.MinorAge)
	}
	if err := required("guardianName", g.GuardianName); err != nil {
		return err
	}
	if err := validEmail("guardianEmail", g.GuardianEmail); err != nil {
		return err
	}
	if err := required("relationship", g.Relationship); err != nil {
		return err
	}
	return oneOf("status", g.Status, ConsentPending, ConsentApproved, ConsentDenied, ConsentRevoked)
}

// SearchFields returns the text matched by free-text search.
func (g GuardianConsent) SearchFields() []string {
	return []string{g.MinorName, g.GuardianName, g.GuardianEmail, g.Purpose}
}

// Category returns the consent status.
func (g GuardianConsent) Category() string { return g.Status }

// Privacy notice statuses.
const (
	NoticeDraft     = "draft"
	NoticePublished = "published"
	NoticeArchived  = "archived"
)

// PrivacyNotice is a versioned privacy notice shown to customers.
type PrivacyNotice struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Version     string     `json:"version"`
	Language    string     `json:"language"`
	Content     string     `json:"content,omitempty"`
	Status      string     `json:"status"`
	EffectiveAt *time.Time `json:"effectiveAt,omitempty"`
}

// Validate checks the notice before it is sent to the backend. A published
// notice needs an effective date.
func (p PrivacyNotice) Validate() error {
	if err := required("title", p.Title); err != nil {
		return err
	}
	if err := required("version", p.Version); err != nil {
		return err
	}
	if err := required("language", p.Language); err != nil {
		return err
	}
	if err := oneOf("status", p.Status, NoticeDraft, NoticePublished, NoticeArchived); err != nil {
		return err
	}
	if p.Status == NoticePublished && p.EffectiveAt == nil {
		return invalid("published notice requires effectiveAt")
	}
	return nil
}

// SearchFields returns the text matched by free-text search.
func (p PrivacyNotice) SearchFields() []string { return []string{p.Title, p.Version, p.Language} }

// Category returns the notice status.
func (p PrivacyNotice) Category() string { return p.Status }

// Preference channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelPhone = "phone"
	ChannelPost  = "post"
)

// TopicPreference is a customer's opt-in for one topic on one channel.
type TopicPreference struct {
	ID         string     `json:"id,omitempty"`
	CustomerID string     `json:"customerId"`
	Topic      string     `json:"topic"`
	Channel    string     `json:"channel"`
	OptedIn    bool       `json:"optedIn"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// Validate checks the preference before it is sent to the backend.
func (t TopicPreference) Validate() error {
	if err := required("customerId", t.CustomerID); err != nil {
		return err
	}
	if err := required("topic", t.Topic); err != nil {
		return err
	}
	return oneOf("channel", t.Channel, ChannelEmail, ChannelSMS, ChannelPush, ChannelPhone, ChannelPost)
}

// SearchFields returns the text matched by free-text search.
func (t TopicPreference) SearchFields() []string { return []string{t.CustomerID, t.Topic} }

// Category returns the channel.
func (t TopicPreference) Category() string { return t.Channel }
