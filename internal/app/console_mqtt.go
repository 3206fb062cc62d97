package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/imu"
	"github.com/relabs-tech/threespace_imu/internal/orientation"
)

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE]  YAW=%7.2f  PITCH=%7.2f  ROLL=%7.2f", p.Yaw, p.Pitch, p.Roll)
}

func formatIMU(m imu.Message) string {
	return fmt.Sprintf(
		"[IMU ]  t=%s  q=(%.4f %.4f %.4f %.4f)  gyro=(%7.3f %7.3f %7.3f) rad/s  accel=(%7.3f %7.3f %7.3f) m/s²",
		m.Timestamp.Format("15:04:05.000000"),
		m.Orientation.X, m.Orientation.Y, m.Orientation.Z, m.Orientation.W,
		m.AngularVelocity.X, m.AngularVelocity.Y, m.AngularVelocity.Z,
		m.LinearAcceleration.X, m.LinearAcceleration.Y, m.LinearAcceleration.Z,
	)
}

// RunConsoleMQTT prints the imu and pose topics until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicPose, logger, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			logger.Warnf("console: pose unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, formatPose(p))
	}); err != nil {
		return err
	}

	if err := subscribe(client, cfg.TopicIMU, logger, func(_ mqtt.Client, msg mqtt.Message) {
		var m imu.Message
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			logger.Warnf("console: imu unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, formatIMU(m))
	}); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
