package app

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Publisher sends JSON payloads to topics.
type Publisher interface {
	Publish(topic string, v interface{}) error
}

type mqttPublisher struct {
	client mqtt.Client
}

// Publish marshals v and publishes it retained at QoS 0.
func (p *mqttPublisher) Publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "json marshal (%s)", topic)
	}
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "MQTT publish error (%s)", topic)
	}
	return nil
}

func connectMQTT(broker, clientID string, logger *zap.SugaredLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "MQTT connect to %s", broker)
	}
	logger.Infof("connected to MQTT broker at %s", broker)
	return client, nil
}

func subscribe(client mqtt.Client, topic string, logger *zap.SugaredLogger, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe %s", topic)
	}
	logger.Infof("subscribed to MQTT topic %s", topic)
	return nil
}
