package profile

import (
	"encoding/json"
)

// Gender codes as delivered by the registration endpoint.
const (
	GenderMale   = 1
	GenderFemale = 2
	GenderOther  = 3
)

// Profile is the user record returned by registration. It is created once
// from a successful registration response, never mutated afterwards, and
// superseded wholesale by a new registration.
type Profile struct {
	ID              *string `json:"id,omitempty"`
	FirstName       *string `json:"firstName,omitempty"`
	LastName        *string `json:"lastName,omitempty"`
	Email           *string `json:"email,omitempty"`
	Gender          *int    `json:"gender,omitempty"` // 1=male, 2=female, 3=other
	DateOfBirth     *string `json:"dateOfBirth,omitempty"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	AlternateNumber *string `json:"alternateNumber,omitempty"`
	City            *string `json:"city,omitempty"`
	State           *string `json:"state,omitempty"`
	Country         *string `json:"country,omitempty"`

	// Extra holds response fields the agent does not model. They are kept
	// verbatim across save/load but never threaded through business logic.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the JSON keys handled by the named struct fields above.
var knownFields = map[string]struct{}{
	"id": {}, "firstName": {}, "lastName": {}, "email": {}, "gender": {},
	"dateOfBirth": {}, "phoneNumber": {}, "alternateNumber": {},
	"city": {}, "state": {}, "country": {},
}

type profileAlias Profile

// UnmarshalJSON decodes the named fields and captures everything else into
// Extra, so unknown backend fields survive a save/load round trip.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var alias profileAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownFields {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*p = Profile(alias)
	p.Extra = raw
	return nil
}

// MarshalJSON re-merges Extra with the named fields.
func (p *Profile) MarshalJSON() ([]byte, error) {
	alias := profileAlias(*p)
	base, err := json.Marshal(&alias)
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range p.Extra {
		if _, known := knownFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// GenderLabel maps the numeric gender code to its display label. Unknown or
// absent codes render as empty and the field is omitted from display.
func (p *Profile) GenderLabel() string {
	if p.Gender == nil {
		return ""
	}
	switch *p.Gender {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	case GenderOther:
		return "Other"
	default:
		return ""
	}
}

// FullName joins first and last name, tolerating either being absent.
func (p *Profile) FullName() string {
	first := stringValue(p.FirstName)
	last := stringValue(p.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

// Field is one labeled line of the identity card.
type Field struct {
	Label string
	Value string
}

// CardFields returns the identity card lines in display order. Fields with
// empty values are omitted.
func (p *Profile) CardFields() []Field {
	candidates := []Field{
		{Label: "ID", Value: stringValue(p.ID)},
		{Label: "Name", Value: p.FullName()},
		{Label: "Email", Value: stringValue(p.Email)},
		{Label: "Gender", Value: p.GenderLabel()},
		{Label: "Date of Birth", Value: stringValue(p.DateOfBirth)},
		{Label: "Phone", Value: stringValue(p.PhoneNumber)},
		{Label: "Alternate Phone", Value: stringValue(p.AlternateNumber)},
		{Label: "City", Value: stringValue(p.City)},
		{Label: "State", Value: stringValue(p.State)},
		{Label: "Country", Value: stringValue(p.Country)},
	}
	fields := make([]Field, 0, len(candidates))
	for _, f := range candidates {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
