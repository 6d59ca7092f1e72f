package persistence

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/infra/logger"
)

// MQTTConfig defines the connection parameters for the Paho MQTT client.
type MQTTConfig struct {
	Broker      string `json:"broker" koanf:"broker"`
	ClientID    string `json:"client_id" koanf:"client_id"`
	Username    string `json:"username" koanf:"username"`
	Password    string `json:"password" koanf:"password"`
	TopicPrefix string `json:"topic_prefix" koanf:"topic_prefix"`
	QoS         byte   `json:"qos" koanf:"qos"`
	UseTLS      bool   `json:"use_tls" koanf:"use_tls"`
	ClientCert  string `json:"client_cert" koanf:"client_cert"`
	ClientKey   string `json:"client_key" koanf:"client_key"`
	CABundle    string `json:"ca_bundle" koanf:"ca_bundle"`
}

// SetDefaults fills missing MQTT parameters.
func (c *MQTTConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "liftd"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "liftd"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTGateway publishes unit state as retained messages on per-unit topics
// and audit events on a shared event topic. Downstream dashboards pick up
// the retained state without replaying history.
type MQTTGateway struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewMQTTGateway connects to the broker described by cfg.
func NewMQTTGateway(cfg MQTTConfig) (*MQTTGateway, error) {
	cfg.SetDefaults()
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_gateway")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTGateway{cli: c, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

func newClientOptions(cfg MQTTConfig) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.loadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (c MQTTConfig) loadTLSConfig() (*tls.Config, error) {
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// UpsertUnitState publishes the unit record retained so late subscribers
// see the latest state immediately.
func (g *MQTTGateway) UpsertUnitState(_ context.Context, rec persistence.UnitRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/elevator/%d/state", g.prefix, rec.UnitID)
	token := g.cli.Publish(topic, g.qos, true, payload)
	token.Wait()
	return token.Error()
}

// AppendEvent publishes the audit entry on the shared event topic.
func (g *MQTTGateway) AppendEvent(_ context.Context, ev persistence.EventRecord) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := g.cli.Publish(g.prefix+"/events", g.qos, false, payload)
	token.Wait()
	return token.Error()
}

// Close gracefully disconnects from the broker.
func (g *MQTTGateway) Close() error {
	if g.cli != nil && g.cli.IsConnected() {
		g.cli.Disconnect(250)
	}
	return nil
}
