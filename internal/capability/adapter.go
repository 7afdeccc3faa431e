// Package capability exposes the fixed, auditable set of messaging operations
// that sandboxed scripts are allowed to perform. Scripts only ever see this
// surface; the raw transport handle is never reachable from inside a sandbox.
package capability

import (
	"context"
	"fmt"

	"github.com/rapzz3312/waconsole/internal/transport"
)

// SendResult is the normalized success value of every send-family operation.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Presence is the result of a presence lookup.
type Presence struct {
	Status string `json:"status"`
}

// Error wraps a transport failure with the name of the capability operation
// that hit it. Scripts observe the Op-prefixed message, never the raw
// transport error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Adapter binds the capability surface to one session's transport handle. It
// is created fresh for every execution request and discarded afterwards.
type Adapter struct {
	handle transport.Handle
}

// NewAdapter wraps a transport handle.
func NewAdapter(handle transport.Handle) *Adapter {
	return &Adapter{handle: handle}
}

func (a *Adapter) send(ctx context.Context, op string, req transport.SendRequest) (SendResult, error) {
	id, err := a.handle.Send(ctx, req)
	if err != nil {
		return SendResult{}, &Error{Op: op, Err: err}
	}
	return SendResult{Success: true, ID: id}, nil
}

// SendText sends a plain text message.
func (a *Adapter) SendText(ctx context.Context, to, text string) (SendResult, error) {
	return a.send(ctx, "send", transport.SendRequest{Kind: "text", To: to, Text: text})
}

// SendGeneric sends an arbitrary message spec passed through to the transport.
func (a *Adapter) SendGeneric(ctx context.Context, to string, spec map[string]any) (SendResult, error) {
	return a.send(ctx, "send", transport.SendRequest{Kind: "raw", To: to, Raw: spec})
}

// SendImage sends an image by URL with an optional caption.
func (a *Adapter) SendImage(ctx context.Context, to, url, caption string) (SendResult, error) {
	return a.send(ctx, "send image", transport.SendRequest{Kind: "image", To: to, URL: url, Caption: caption})
}

// SendVideo sends a video by URL with an optional caption.
func (a *Adapter) SendVideo(ctx context.Context, to, url, caption string) (SendResult, error) {
	return a.send(ctx, "send video", transport.SendRequest{Kind: "video", To: to, URL: url, Caption: caption})
}

// SendAudio sends an audio clip by URL.
func (a *Adapter) SendAudio(ctx context.Context, to, url string) (SendResult, error) {
	return a.send(ctx, "send audio", transport.SendRequest{Kind: "audio", To: to, URL: url})
}

// SendContact sends a contact card. The numeric identifier doubles as the
// cellular number and the protocol-routable id inside the vCard.
func (a *Adapter) SendContact(ctx context.Context, to, displayName, number string) (SendResult, error) {
	vcard := buildVCard(displayName, number)
	return a.send(ctx, "send contact", transport.SendRequest{Kind: "contact", To: to, Text: displayName, VCard: vcard})
}

// SendLocation sends geographic coordinates with an optional label.
func (a *Adapter) SendLocation(ctx context.Context, to string, latitude, longitude float64, label string) (SendResult, error) {
	return a.send(ctx, "send location", transport.SendRequest{
		Kind: "location", To: to, Latitude: latitude, Longitude: longitude, Label: label,
	})
}

// SendPoll sends a poll with a question and its options.
func (a *Adapter) SendPoll(ctx context.Context, to, question string, options []string) (SendResult, error) {
	return a.send(ctx, "send poll", transport.SendRequest{Kind: "poll", To: to, Question: question, Options: options})
}

// React attaches an emoji reaction to a previously sent message.
func (a *Adapter) React(ctx context.Context, to, messageID, emoji string) (SendResult, error) {
	if err := a.handle.React(ctx, to, messageID, emoji); err != nil {
		return SendResult{}, &Error{Op: "react", Err: err}
	}
	return SendResult{Success: true, ID: messageID}, nil
}

// DeleteMessage retracts a previously sent message.
func (a *Adapter) DeleteMessage(ctx context.Context, to, messageID string) (SendResult, error) {
	if err := a.handle.Delete(ctx, to, messageID); err != nil {
		return SendResult{}, &Error{Op: "delete", Err: err}
	}
	return SendResult{Success: true, ID: messageID}, nil
}

// GetPresence looks up an identity's availability. Lookup failures degrade to
// an "unknown" status instead of raising.
func (a *Adapter) GetPresence(ctx context.Context, identityKey string) Presence {
	status, err := a.handle.Presence(ctx, identityKey)
	if err != nil || status == "" {
		return Presence{Status: "unknown"}
	}
	return Presence{Status: status}
}

func buildVCard(displayName, number string) string {
	return fmt.Sprintf(
		"BEGIN:VCARD\nVERSION:3.0\nFN:%s\nTEL;type=CELL;type=VOICE;waid=%s:+%s\nEND:VCARD",
		displayName, number, number,
	)
}
