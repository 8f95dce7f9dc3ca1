// Package contact implements the contact form workflow: capturing the
// submitted fields, handing them to a Sender and tracking the status that the
// form view renders.
package contact

import (
	"net/url"
	"strings"
)

// Form keys sent to the relay and used as FieldErrors keys.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"

	// FormKey collects errors the relay does not attribute to a field.
	FormKey = "form"
)

// Payload is the set of values captured from the form at submit time.
type Payload struct {
	Name    string `form:"name" json:"name" binding:"required"`
	Email   string `form:"email" json:"email" binding:"required"`
	Message string `form:"message" json:"message" binding:"required"`
}

// Missing lists the required keys that are empty. Only presence is checked,
// the same as a browser's native required attribute.
func (p Payload) Missing() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, FieldName)
	}
	if p.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if p.Message == "" {
		missing = append(missing, FieldMessage)
	}
	return missing
}

// Values encodes the payload under its form keys.
func (p Payload) Values() url.Values {
	v := url.Values{}
	v.Set(FieldName, p.Name)
	v.Set(FieldEmail, p.Email)
	v.Set(FieldMessage, p.Message)
	return v
}

// IsZero reports whether every input is empty.
func (p Payload) IsZero() bool {
	return p == Payload{}
}

func (p Payload) String() string {
	return strings.TrimSpace(p.Name) + " <" + strings.TrimSpace(p.Email) + ">"
}
