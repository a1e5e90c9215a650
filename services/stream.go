package services

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Source - a stream of robot status payloads. Run blocks until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, handle func(payload []byte)) error
}

// ========================================
// Upstream WebSocket
// ========================================

// WSSource - dials the upstream status socket and reconnects with backoff
type WSSource struct {
	URL        string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Log        zerolog.Logger
}

// NewWSSource - source for url with 1s..30s backoff
func NewWSSource(url string, log zerolog.Logger) *WSSource {
	return &WSSource{
		URL:        url,
		Dialer:     websocket.DefaultDialer,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
		Log:        log,
	}
}

func (s *WSSource) Run(ctx context.Context, handle func([]byte)) error {
	backoff := s.MinBackoff
	for {
		received, err := s.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if received {
			backoff = s.MinBackoff
		}
		s.Log.Warn().Err(err).Str("url", s.URL).Dur("retry_in", backoff).Msg("robot status socket closed")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.MaxBackoff {
			backoff = s.MaxBackoff
		}
	}
}

// session reads one connection until it fails. received reports whether any message
// arrived, which resets the backoff.
func (s *WSSource) session(ctx context.Context, handle func([]byte)) (received bool, err error) {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()
	s.Log.Info().Str("url", s.URL).Msg("robot status socket connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		received = true
		handle(data)
	}
}

// ========================================
// MQTT
// ========================================

// MQTTSource - subscribes to a broker topic
type MQTTSource struct {
	Broker   string
	Topic    string
	ClientID string
	Log      zerolog.Logger
}

func (s *MQTTSource) Run(ctx context.Context, handle func([]byte)) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.Broker).
		SetClientID(s.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Subscriptions do not survive a reconnect with a clean session.
			token := c.Subscribe(s.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
				handle(msg.Payload())
			})
			token.Wait()
			if err := token.Error(); err != nil {
				s.Log.Error().Err(err).Str("topic", s.Topic).Msg("mqtt subscribe failed")
				return
			}
			s.Log.Info().Str("broker", s.Broker).Str("topic", s.Topic).Msg("mqtt subscribed")
		})

	client := mqtt.NewClient(opts)
	defer client.Disconnect(250)

	// With connect retry on, the token only completes once a connection is up.
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		return nil
	}
	<-ctx.Done()
	return nil
}
