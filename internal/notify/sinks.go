package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// LogSink writes deliveries to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(_ context.Context, d Delivery) error {
	log.Info().
		Str("id", d.ID).
		Str("kind", d.Kind.String()).
		Str("prayer", string(d.Prayer)).
		Str("date", d.Date).
		Str("channel", d.Channel.String()).
		Bool("sound", d.Sound).
		Msg(d.Title)
	return nil
}

// ---------------------------------------------------------------------------
// MQTT
// ---------------------------------------------------------------------------

// MQTTOptions configures the MQTT sink.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is the base topic; deliveries go to <topic>/<kind>/<prayer>.
	Topic string
	QoS   byte
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes deliveries as JSON to an MQTT broker.
type MQTTSink struct {
	client  publisher
	topic   string
	qos     byte
	timeout time.Duration
	closeFn func()
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(opts MQTTOptions) (*MQTTSink, error) {
	if opts.ClientID == "" {
		opts.ClientID = "prayerd"
	}
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("connected to MQTT broker")
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", opts.Broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s := newMQTTSink(client, opts.Topic, opts.QoS)
	s.closeFn = func() { client.Disconnect(250) }
	return s, nil
}

func newMQTTSink(p publisher, topic string, qos byte) *MQTTSink {
	if topic == "" {
		topic = "prayerd"
	}
	return &MQTTSink{client: p, topic: strings.TrimSuffix(topic, "/"), qos: qos, timeout: 10 * time.Second}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// TopicFor returns the topic a delivery is published on.
func (s *MQTTSink) TopicFor(d Delivery) string {
	return fmt.Sprintf("%s/%s/%s", s.topic, d.Kind, strings.ToLower(string(d.Prayer)))
}

func (s *MQTTSink) Deliver(_ context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	token := s.client.Publish(s.TopicFor(d), s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish %s: timed out", d.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", d.ID, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// ---------------------------------------------------------------------------
// Telegram
// ---------------------------------------------------------------------------

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramSink sends deliveries to a Telegram chat. Silent alerts are sent
// without a notification sound.
type TelegramSink struct {
	bot  sender
	chat tele.ChatID
}

// NewTelegramSink creates a send-only bot for chatID.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramSink{bot: b, chat: tele.ChatID(chatID)}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(_ context.Context, d Delivery) error {
	text := d.Title
	if d.Body != "" && d.Body != d.Title {
		text += "\n" + d.Body
	}
	if _, err := s.bot.Send(s.chat, text, &tele.SendOptions{DisableNotification: !d.Sound}); err != nil {
		return fmt.Errorf("telegram send %s: %w", d.ID, err)
	}
	return nil
}
