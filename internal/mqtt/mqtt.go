// Package mqtt wraps the paho client with the connection contract both
// daemons share: QoS 0 everywhere, retained state topics, LWT on the wifi
// state channel, automatic reconnect with resubscription via the connect
// callback, and fire-and-forget publishes whose acks are only ever logged.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type Message struct {
	Topic   string
	Payload []byte
}

type Handler func(msg Message)

type Options struct {
	BrokerURL   string
	Username    string
	Password    string
	ClientID    string
	CACert      string
	KeepAlive   time.Duration
	PingTimeout time.Duration

	// WillTopic/WillPayload configure the broker-published last will,
	// retained, so surfaces see a disconnect without a goodbye message.
	WillTopic   string
	WillPayload string

	OnConnect        func(c *Client)
	OnConnectionLost func(err error)
}

type Client struct {
	c paho.Client
}

func addCACert(opts *paho.ClientOptions, caCert string) (*paho.ClientOptions, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(caCert)
	if err != nil {
		return nil, fmt.Errorf("failed to append %q to root CAs: %w", caCert, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		log.Warn().Str("file", caCert).Msg("No certs appended, using system certs only")
	}

	return opts.SetTLSConfig(&tls.Config{RootCAs: rootCAs}), nil
}

func New(o Options) (*Client, error) {
	m := &Client{}

	opts := paho.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetKeepAlive(o.KeepAlive).
		SetPingTimeout(o.PingTimeout).
		SetAutoReconnect(true)
	if o.Username != "" {
		opts = opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts = opts.SetPassword(o.Password)
	}
	if o.ClientID != "" {
		opts = opts.SetClientID(o.ClientID)
	}
	if o.WillTopic != "" {
		opts = opts.SetWill(o.WillTopic, o.WillPayload, 0, true)
	}
	if o.OnConnect != nil {
		opts = opts.SetOnConnectHandler(func(paho.Client) { o.OnConnect(m) })
	}
	if o.OnConnectionLost != nil {
		opts = opts.SetConnectionLostHandler(func(_ paho.Client, err error) { o.OnConnectionLost(err) })
	}
	if o.CACert != "" {
		var err error
		opts, err = addCACert(opts, o.CACert)
		if err != nil {
			return nil, err
		}
	}

	m.c = paho.NewClient(opts)
	return m, nil
}

func (m *Client) Connect() error {
	if token := m.c.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Disconnect flushes outstanding work and drops the broker connection.
func (m *Client) Disconnect() {
	m.c.Disconnect(250)
}

func (m *Client) IsConnected() bool {
	return m.c.IsConnectionOpen()
}

func (m *Client) Subscribe(topic string, handler Handler) error {
	token := m.c.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		handler(Message{Topic: msg.Topic(), Payload: msg.Payload()})
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for topic '%s': %w", topic, err)
	}
	log.Debug().Str("topic", topic).Msg("Subscribed")
	return nil
}

// Publish sends without waiting for the ack; control logic never blocks on
// delivery. The token is drained in the background purely for logging.
func (m *Client) Publish(topic, payload string, retain bool) {
	token := m.c.Publish(topic, 0, retain, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("Publish failed")
		}
	}()
}
