// Package mqtt is an optional second write/read boundary.
// Payloads on <prefix>/set go through the same validation as HTTP writes;
// accepted targets are echoed retained on <prefix>/state.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/eventbus"
	"github.com/dokzlo13/rgbd/internal/intake"
)

const qos = 1

// Publisher receives connectivity events.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Service bridges an MQTT broker to the intake.
type Service struct {
	cfg    config.MQTTConfig
	intake *intake.Intake
	events Publisher
	client pahomqtt.Client

	// publish is swapped out in tests
	publish func(topic string, retained bool, payload []byte)
}

// New creates the service; nothing connects until Start.
func New(cfg config.MQTTConfig, in *intake.Intake, events Publisher) *Service {
	if cfg.ClientID == "" {
		cfg.ClientID = "rgbd-" + uuid.NewString()[:8]
	}
	s := &Service{
		cfg:    cfg,
		intake: in,
		events: events,
	}
	s.publish = s.clientPublish
	return s
}

// SetTopic is where colour writes arrive.
func (s *Service) SetTopic() string {
	return s.cfg.TopicPrefix + "/set"
}

// StateTopic is where accepted targets are published.
func (s *Service) StateTopic() string {
	return s.cfg.TopicPrefix + "/state"
}

// Start connects to the broker. Subscriptions are (re)made on every connect.
func (s *Service) Start(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = s.onConnect
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", s.cfg.Broker).Msg("MQTT connection lost")
		s.connectivity("disconnected", err)
	}
	opts.OnReconnecting = func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		log.Info().Str("broker", s.cfg.Broker).Msg("MQTT reconnecting")
	}

	s.client = pahomqtt.NewClient(opts)

	log.Info().Str("broker", s.cfg.Broker).Str("client_id", s.cfg.ClientID).Msg("Connecting to MQTT broker")
	token := s.client.Connect()

	timeout := s.cfg.ConnectTimeout.Duration()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-time.After(timeout):
		// ConnectRetry keeps trying in the background; the HTTP boundary is unaffected.
		log.Warn().Dur("timeout", timeout).Msg("MQTT broker not reachable yet, retrying in background")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Close disconnects from the broker.
func (s *Service) Close() {
	// The client may still be retrying its first connect; Disconnect stops that too.
	if s.client != nil {
		s.client.Disconnect(250)
		log.Info().Msg("Disconnected from MQTT broker")
	}
}

func (s *Service) onConnect(c pahomqtt.Client) {
	log.Info().Str("broker", s.cfg.Broker).Msg("Connected to MQTT broker")
	s.connectivity("connected", nil)

	token := c.Subscribe(s.SetTopic(), qos, s.handleMessage)
	if !token.WaitTimeout(s.cfg.ConnectTimeout.Duration()) {
		log.Warn().Str("topic", s.SetTopic()).Msg("Subscribe not acknowledged in time")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", s.SetTopic()).Msg("Failed to subscribe")
		return
	}
	log.Info().Str("topic", s.SetTopic()).Msg("Subscribed to color writes")
}

func (s *Service) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	res := s.intake.Submit(intake.SourceMQTT, msg.Payload())
	if res.Err != nil {
		return
	}
	s.publish(s.StateTopic(), true, []byte(res.Color.Hex()))
}

func (s *Service) clientPublish(topic string, retained bool, payload []byte) {
	if s.client == nil {
		return
	}
	token := s.client.Publish(topic, qos, retained, payload)
	go func() {
		if token.WaitTimeout(s.cfg.ConnectTimeout.Duration()) && token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("Failed to publish state")
		}
	}()
}

func (s *Service) connectivity(state string, err error) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"transport": "mqtt",
		"state":     state,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.events.Publish(eventbus.Event{Type: eventbus.EventTypeConnectivity, Data: data})
}
