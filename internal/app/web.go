package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/threespace_imu/internal/config"
	"github.com/relabs-tech/threespace_imu/internal/imu"
	"github.com/relabs-tech/threespace_imu/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = time.Second

// LiveState keeps the latest reading and pose received from MQTT and fans
// readings out to websocket clients.
type LiveState struct {
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	lastIMU  imu.Message
	haveIMU  bool
	lastPose orientation.Pose
	havePose bool

	clientsMu sync.Mutex
	clients   map[chan imu.Message]struct{}
}

// NewLiveState returns an empty state.
func NewLiveState(logger *zap.SugaredLogger) *LiveState {
	return &LiveState{logger: logger, clients: map[chan imu.Message]struct{}{}}
}

// HandleIMU records an imu topic payload and broadcasts it.
func (s *LiveState) HandleIMU(payload []byte) {
	var m imu.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		s.logger.Warnf("MQTT payload unmarshal error (imu): %v", err)
		return
	}
	s.mu.Lock()
	s.lastIMU, s.haveIMU = m, true
	s.mu.Unlock()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c <- m:
		default:
			// slow client, it gets the next one
		}
	}
}

// HandlePose records a pose topic payload.
func (s *LiveState) HandlePose(payload []byte) {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warnf("MQTT payload unmarshal error (pose): %v", err)
		return
	}
	s.mu.Lock()
	s.lastPose, s.havePose = p, true
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("json encode error: %v", err)
	}
}

func (s *LiveState) serveIMU(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveIMU {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.lastIMU, s.logger)
}

func (s *LiveState) serveOrientation(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.havePose {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.lastPose, s.logger)
}

// serveWS streams every reading to the client until it goes away.
func (s *LiveState) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := make(chan imu.Message, 8)
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
	}()

	// The reader only notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debugf("websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case m := <-c:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(m); err != nil {
				s.logger.Debugf("websocket write error: %v", err)
				return
			}
		}
	}
}

// Handler routes the JSON API, the websocket stream and the static files in ./web.
func (s *LiveState) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/imu", s.serveIMU)
	mux.HandleFunc("/api/orientation", s.serveOrientation)
	mux.HandleFunc("/ws", s.serveWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb subscribes to the imu and pose topics and serves them over HTTP until
// ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	state := NewLiveState(logger)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicIMU, logger, func(_ mqtt.Client, msg mqtt.Message) {
		state.HandleIMU(msg.Payload())
	}); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicPose, logger, func(_ mqtt.Client, msg mqtt.Message) {
		state.HandlePose(msg.Payload())
	}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.WebServerPort),
		Handler:           state.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
