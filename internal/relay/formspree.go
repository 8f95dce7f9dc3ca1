// Package relay delivers contact form payloads to whoever forwards them to
// the site owner: a Formspree style HTTP endpoint or an SMTP server.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/contact"
)

// DefaultEndpoint is the form relay the site posts to when none is set.
const DefaultEndpoint = "https://formspree.io/f/mldnqqeb"

const maxReplyBytes = 1 << 20

// Formspree posts payloads to a form relay endpoint as multipart form data
// and interprets its JSON reply.
type Formspree struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// reply is the JSON body of a rejected submission.
type reply struct {
	Errors []contact.FieldError `json:"errors"`
	Error  string               `json:"error"`
}

// NewFormspree returns a client for endpoint. A zero timeout leaves requests
// bounded only by their context.
func NewFormspree(endpoint string, timeout time.Duration, log *zap.Logger) *Formspree {
	if log == nil {
		log = zap.NewNop()
	}
	return &Formspree{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Send performs exactly one POST. A 2xx status is success whatever the body.
func (f *Formspree) Send(ctx context.Context, p contact.Payload) error {
	body, contentType, err := encodeMultipart(p)
	if err != nil {
		return &contact.TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, body)
	if err != nil {
		return &contact.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return transportError(err)
	}
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		f.log.Debug("relay returned unreadable body",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", truncate(data, 256)))
		return &contact.TransportError{Err: fmt.Errorf("malformed response body: %w", err)}
	}

	rej := &contact.Rejection{StatusCode: resp.StatusCode, Message: cleanText(r.Error)}
	if r.Errors != nil {
		rej.Fields = make([]contact.FieldError, 0, len(r.Errors))
		for _, fe := range r.Errors {
			rej.Fields = append(rej.Fields, contact.FieldError{
				Field:   fe.Field,
				Message: cleanText(fe.Message),
			})
		}
	}
	return rej
}

func encodeMultipart(p contact.Payload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range []string{contact.FieldName, contact.FieldEmail, contact.FieldMessage} {
		if err := w.WriteField(key, p.Values().Get(key)); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// transportError drops the method and URL prefix net/http puts on client
// errors so the visitor sees the cause only.
func transportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return &contact.TransportError{Err: err}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
