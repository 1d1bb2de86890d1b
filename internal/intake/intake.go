// Package intake validates colour write requests from any boundary and hands
// accepted colours to the transition engine.
package intake

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/eventbus"
)

// Sources recorded with each request.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// maxEchoedBody bounds how much of a rejected payload is kept for auditing.
const maxEchoedBody = 32

// Target receives validated colours.
type Target interface {
	SetTarget(c color.Color)
}

// Publisher receives request events.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Result describes the outcome of one Submit.
type Result struct {
	RequestID string
	Color     color.Color
	Err       error
}

// Intake is safe for concurrent use.
type Intake struct {
	target Target
	events Publisher
}

// New creates an Intake. events may be nil.
func New(target Target, events Publisher) *Intake {
	return &Intake{target: target, events: events}
}

// Submit parses payload as exactly six hex digits. Malformed payloads leave
// the engine untouched and are reported through Result.Err.
func (i *Intake) Submit(source string, payload []byte) Result {
	res := Result{RequestID: uuid.NewString()}

	c, err := color.ParseHex(string(payload))
	if err != nil {
		res.Err = err
		log.Debug().
			Err(err).
			Str("source", source).
			Str("request_id", res.RequestID).
			Msg("Rejected color request")
		i.publish(eventbus.Event{
			Type: eventbus.EventTypeColorRejected,
			Data: map[string]any{
				"source":     source,
				"request_id": res.RequestID,
				"reason":     err.Error(),
				"body":       echo(payload),
			},
		})
		return res
	}

	res.Color = c
	i.target.SetTarget(c)

	log.Info().
		Str("color", c.Hex()).
		Str("source", source).
		Str("request_id", res.RequestID).
		Msg("Color requested")
	i.publish(eventbus.Event{
		Type: eventbus.EventTypeColorRequested,
		Data: map[string]any{
			"source":     source,
			"request_id": res.RequestID,
			"color":      c.Hex(),
		},
	})
	return res
}

func (i *Intake) publish(e eventbus.Event) {
	if i.events != nil {
		i.events.Publish(e)
	}
}

func echo(payload []byte) string {
	if len(payload) > maxEchoedBody {
		payload = payload[:maxEchoedBody]
	}
	return string(payload)
}
