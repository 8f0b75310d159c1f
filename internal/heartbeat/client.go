package heartbeat

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const connectTimeout = 15 * time.Second

// ClientOptions configures the broker connection.
type ClientOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Dial connects to the MQTT broker. The client reconnects on its own after
// the initial connection succeeds.
func Dial(opts ClientOptions, logger *zap.Logger) (mqtt.Client, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		broker = "tcp://localhost:1883"
	}
	if strings.HasPrefix(broker, "mqtt://") {
		broker = "tcp://" + strings.TrimPrefix(broker, "mqtt://")
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = "devicepulse-" + time.Now().Format("150405.000")
	}

	co := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	co.OnConnect = func(_ mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", broker))
	}

	c := mqtt.NewClient(co)
	tok := c.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %s", broker, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}
