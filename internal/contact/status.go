package contact

import (
	"errors"
	"strings"
)

// Phase is the submission status of a form view.
type Phase int

const (
	// Idle shows no banner and accepts a submit.
	Idle Phase = iota
	// Submitting waits on the relay; inputs are disabled.
	Submitting
	// Succeeded shows the thank-you banner until dismissed.
	Succeeded
	// Failed shows the failure banner and any inline field errors.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Messages shown in the status banner.
const (
	MsgSent           = "Thank you! Your message has been sent successfully."
	MsgCorrectErrors  = "Please correct the errors in the form."
	MsgSendFailed     = "Failed to send message"
	MsgFallbackFailed = "An error occurred while sending your message. Please try again later."
)

// Status is the active phase together with the banner message.
type Status struct {
	Phase   Phase
	Message string
}

// FieldErrors maps a form key, or FormKey, to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) clone() FieldErrors {
	if fe == nil {
		return nil
	}
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// failure turns a Sender error into the banner message and the inline field
// errors of a Failed status.
func failure(err error) (string, FieldErrors) {
	var rej *Rejection
	if errors.As(err, &rej) {
		if rej.Fields != nil {
			fields := make(FieldErrors, len(rej.Fields))
			for _, fe := range rej.Fields {
				key := fe.Field
				if key == "" {
					key = FormKey
				}
				fields[key] = fe.Message
			}
			return MsgCorrectErrors, fields
		}
		if rej.Message != "" {
			return rej.Message, nil
		}
		return MsgSendFailed, nil
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg, nil
	}
	return MsgFallbackFailed, nil
}
