package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aquaguard/aquaguard/internal/calculator"
)

// Commitment is one action from the closed pledge vocabulary.
type Commitment = calculator.Commitment

// AnonymousName replaces the display name of anonymous pledges.
const AnonymousName = "Anonymous"

// MaxDisplayNameLength bounds Pledge.DisplayName in characters.
const MaxDisplayNameLength = 100

// emailPattern accepts dot or dash separated word groups on either side of
// the @ followed by one or more 2-3 letter top-level segments.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// Pledge is one submitted set of conservation commitments.
//
// DailyWaterSavedLiters is derived from Commitments and is only written by
// Apply, so the two never drift apart.
type Pledge struct {
	// ID is the unique identifier for the pledge (UUID format).
	ID string `json:"id"`

	// SubmitterID references the user who submitted the pledge.
	// Empty when the pledge was submitted without signing in.
	SubmitterID string `json:"submitterId,omitempty"`

	// DisplayName is shown publicly. Always AnonymousName when IsAnonymous.
	DisplayName string `json:"displayName"`

	// Email is stored lowercase. Omitted from public views.
	Email string `json:"email,omitempty"`

	// Commitments keeps first-occurrence order with duplicates removed.
	Commitments []Commitment `json:"commitments"`

	// DailyWaterSavedLiters is the calculator's estimate for Commitments.
	DailyWaterSavedLiters int `json:"dailyWaterSavedLiters"`

	IsAnonymous bool `json:"isAnonymous"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PledgeInput is the caller-supplied part of a pledge.
type PledgeInput struct {
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Commitments []string `json:"commitments"`
	IsAnonymous bool     `json:"isAnonymous"`
}

// NewPledge validates in and builds a pledge owned by submitterID (which may
// be empty). Both timestamps are set to now; the store assigns the ID.
func NewPledge(in PledgeInput, submitterID string, now time.Time) (*Pledge, error) {
	p := &Pledge{SubmitterID: submitterID, CreatedAt: now}
	if err := p.Apply(in, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply validates in and, only if every field is valid, replaces the pledge's
// user-supplied fields, recomputes the daily savings and refreshes UpdatedAt.
func (p *Pledge) Apply(in PledgeInput, now time.Time) error {
	verr := &ValidationError{}

	name := strings.TrimSpace(in.DisplayName)
	if in.IsAnonymous {
		// The submitted name is discarded, not hidden.
		name = AnonymousName
	}
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		verr.Add("displayName", "Name is required")
	case n > MaxDisplayNameLength:
		verr.Add("displayName", fmt.Sprintf("Name cannot be more than %d characters", MaxDisplayNameLength))
	}

	email, msg := NormalizeEmail(in.Email)
	if msg != "" {
		verr.Add("email", msg)
	}

	commitments, err := ParseCommitments(in.Commitments)
	var cerr *ValidationError
	if errors.As(err, &cerr) {
		verr.Errors = append(verr.Errors, cerr.Errors...)
	}

	if err := verr.OrNil(); err != nil {
		return err
	}

	p.DisplayName = name
	p.Email = email
	p.IsAnonymous = in.IsAnonymous
	p.Commitments = commitments
	p.DailyWaterSavedLiters = calculator.DailySavings(commitments)
	p.UpdatedAt = now
	return nil
}

// ParseCommitments checks raw against the commitment vocabulary and returns
// the de-duplicated list in first-occurrence order. An empty or missing list
// is rejected. Any failure is a *ValidationError.
func ParseCommitments(raw []string) ([]Commitment, error) {
	verr := &ValidationError{}
	if len(raw) == 0 {
		verr.Add("commitments", "Please select at least one pledge")
		return nil, verr
	}

	seen := make(map[Commitment]bool, len(raw))
	out := make([]Commitment, 0, len(raw))
	for i, s := range raw {
		c, ok := calculator.ParseCommitment(s)
		if !ok {
			verr.Add(fmt.Sprintf("commitments[%d]", i), fmt.Sprintf("%q is not a valid pledge option", s))
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// PublicView returns a copy safe for public listings: the email is dropped.
func (p *Pledge) PublicView() *Pledge {
	cp := *p
	cp.Email = ""
	cp.Commitments = append([]Commitment(nil), p.Commitments...)
	return &cp
}

// NormalizeEmail trims and lowercases email. The message is empty when the
// result is a well-formed address.
func NormalizeEmail(email string) (string, string) {
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case email == "":
		return email, "Email is required"
	case !emailPattern.MatchString(email):
		return email, "Please enter a valid email"
	}
	return email, ""
}
