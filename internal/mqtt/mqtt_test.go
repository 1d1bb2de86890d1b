package mqtt

import (
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/eventbus"
	"github.com/dokzlo13/rgbd/internal/intake"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qos }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeTarget struct {
	set []color.Color
}

func (f *fakeTarget) SetTarget(c color.Color) { f.set = append(f.set, c) }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeEvents struct {
	events []eventbus.Event
}

func (f *fakeEvents) Publish(e eventbus.Event) { f.events = append(f.events, e) }

func newTestService(t *testing.T) (*Service, *fakeTarget, *[]published) {
	t.Helper()
	cfg := config.Default().MQTT
	cfg.TopicPrefix = "living/strip"

	target := &fakeTarget{}
	s := New(cfg, intake.New(target, nil), nil)

	var out []published
	s.publish = func(topic string, retained bool, payload []byte) {
		out = append(out, published{topic, retained, string(payload)})
	}
	return s, target, &out
}

func TestTopics(t *testing.T) {
	s, _, _ := newTestService(t)
	assert.Equal(t, "living/strip/set", s.SetTopic())
	assert.Equal(t, "living/strip/state", s.StateTopic())
}

func TestGeneratedClientID(t *testing.T) {
	s, _, _ := newTestService(t)
	assert.Regexp(t, `^rgbd-[0-9a-f]{8}$`, s.cfg.ClientID)

	cfg := config.Default().MQTT
	cfg.ClientID = "kitchen"
	assert.Equal(t, "kitchen", New(cfg, nil, nil).cfg.ClientID)
}

func TestHandleMessageAccepted(t *testing.T) {
	s, target, out := newTestService(t)

	s.handleMessage(nil, &fakeMessage{topic: s.SetTopic(), payload: []byte("00FF7f")})

	require.Len(t, target.set, 1)
	assert.Equal(t, color.Color{R: 0, G: 255, B: 127}, target.set[0])
	require.Len(t, *out, 1)
	assert.Equal(t, published{"living/strip/state", true, "00ff7f"}, (*out)[0])
}

func TestHandleMessageRejected(t *testing.T) {
	s, target, out := newTestService(t)

	s.handleMessage(nil, &fakeMessage{topic: s.SetTopic(), payload: []byte("#00ff7f")})
	s.handleMessage(nil, &fakeMessage{topic: s.SetTopic(), payload: []byte("red")})

	assert.Empty(t, target.set)
	assert.Empty(t, *out)
}

func TestConnectivityEvents(t *testing.T) {
	s, _, _ := newTestService(t)
	events := &fakeEvents{}
	s.events = events

	s.connectivity("connected", nil)
	s.connectivity("disconnected", assert.AnError)

	require.Len(t, events.events, 2)
	assert.Equal(t, eventbus.EventTypeConnectivity, events.events[0].Type)
	assert.Equal(t, "connected", events.events[0].Str("state"))
	assert.Equal(t, "mqtt", events.events[1].Str("transport"))
	assert.Equal(t, assert.AnError.Error(), events.events[1].Str("error"))
}

// disconnectCounter satisfies pahomqtt.Client; only Disconnect is implemented.
type disconnectCounter struct {
	pahomqtt.Client
	disconnects int
}

func (c *disconnectCounter) Disconnect(quiesce uint) { c.disconnects++ }

func TestCloseDisconnectsWhileStillConnecting(t *testing.T) {
	s := New(config.MQTTConfig{}, nil, nil)
	client := &disconnectCounter{}
	s.client = client

	s.Close()
	assert.Equal(t, 1, client.disconnects)
}

func TestCloseWithoutStart(t *testing.T) {
	s := New(config.MQTTConfig{}, nil, nil)
	assert.NotPanics(t, s.Close)
}
