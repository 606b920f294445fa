package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/srg/basket/internal/proximity"
)

// DefaultMQTTTimeout bounds connect and publish acknowledgements
const DefaultMQTTTimeout = 5 * time.Second

// MQTTConfig configures the broker sink
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// Publisher is the part of mqtt.Client the sink uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type dataMessage struct {
	Device  string    `json:"device"`
	Address string    `json:"address"`
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"ts"`
	Data    string    `json:"data"`
}

type goalMessage struct {
	Device  string    `json:"device"`
	Address string    `json:"address"`
	RSSI    int       `json:"rssi"`
	Band    string    `json:"band"`
	Time    time.Time `json:"ts"`
}

// MQTTSink publishes chunks to <topic>/<address>/data and proximity
// confirmations to <topic>/<address>/goal.
type MQTTSink struct {
	client  Publisher
	topic   string
	qos     byte
	timeout time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// NewMQTTSink connects to the broker
func NewMQTTSink(cfg MQTTConfig, logger *logrus.Logger) (*MQTTSink, error) {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMQTTTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.WithField("broker", cfg.Broker).Info("Connected to MQTT")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).WithField("broker", cfg.Broker).Warn("Lost MQTT connection")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	return NewMQTTSinkWithClient(client, cfg, logger), nil
}

// NewMQTTSinkWithClient builds the sink on an existing client
func NewMQTTSinkWithClient(client Publisher, cfg MQTTConfig, logger *logrus.Logger) *MQTTSink {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMQTTTimeout
	}
	return &MQTTSink{
		client:  client,
		topic:   strings.TrimSuffix(cfg.Topic, "/"),
		qos:     cfg.QoS,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *MQTTSink) Write(chunk Chunk) error {
	return s.publish(s.topicFor(chunk.Address, "data"), dataMessage{
		Device:  chunk.Device,
		Address: chunk.Address,
		Seq:     chunk.Seq,
		Time:    chunk.Time.UTC(),
		Data:    chunk.Text(),
	})
}

func (s *MQTTSink) ReportGoal(device, address string, rssi int) error {
	band, _ := proximity.Classify(proximity.Reading(rssi))
	return s.publish(s.topicFor(address, "goal"), goalMessage{
		Device:  device,
		Address: address,
		RSSI:    rssi,
		Band:    band.String(),
		Time:    s.now().UTC(),
	})
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

func (s *MQTTSink) publish(topic string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}

	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// topicFor keeps MQTT wildcards and separators out of the device level
func (s *MQTTSink) topicFor(address, kind string) string {
	level := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(address)
	if level == "" {
		level = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", s.topic, level, kind)
}

var (
	_ Sink         = (*MQTTSink)(nil)
	_ GoalReporter = (*MQTTSink)(nil)
	_ Publisher    = (mqtt.Client)(nil)
)
