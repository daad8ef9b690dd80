package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"engageflow/internal/campaign"
	"engageflow/internal/metrics"
	"engageflow/internal/notifier"
	"engageflow/internal/platform"
	"engageflow/internal/spin"
	"engageflow/internal/token"
	"engageflow/logger"
)

const (
	handshakeWait  = 30 * time.Second
	maxMessageSize = 64 << 10
)

type sessionKind string

const (
	tasksSession sessionKind = "tasks"
	spinSession  sessionKind = "spin"
)

// serveSession upgrades the connection, waits for the {token} message and
// runs one automation, streaming its events back. The run is cancelled as
// soon as the client goes away.
func (s *Server) serveSession(c *gin.Context, kind sessionKind) {
	if !s.trackSession() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Server shutting down"})
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithComponent("session").WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.WithComponent(string(kind) + "_session").WithFields(logger.Fields{
		"session_id": uuid.NewString(),
		"remote":     c.ClientIP(),
	})

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var req tokenRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.WithError(err).Debug("no token received")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(s.sessionCtx)
	defer cancel()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		readPump(conn, cancel)
	}()

	sink := notifier.NewWebSocketSink(conn, cancel)

	logger.SessionOpened()
	metrics.SessionStarted(string(kind))
	s.active.Add(1)
	s.served.Add(1)
	start := time.Now()
	defer func() {
		s.active.Add(-1)
		logger.SessionClosed()
		metrics.SessionEnded(string(kind))
		logger.LogPerformanceEntry(log, "session", string(kind), time.Since(start), nil)
	}()

	if err := s.runSession(ctx, kind, req.Token, sink, log); err != nil {
		log.WithError(err).Info("session ended early")
	}

	_ = sink.Close()
	cancel()
	_ = conn.Close()
	<-pumpDone
}

func (s *Server) runSession(ctx context.Context, kind sessionKind, raw string, sink notifier.Sink, log *logger.Entry) error {
	userID, idErr := token.Identify(raw)
	bare := token.StripBearer(raw)

	switch kind {
	case tasksSession:
		if idErr != nil {
			return idErr
		}
		client := platform.NewClient(s.cfg.Platform, bare)
		defer client.Close()

		log = log.WithField("user_id", userID)
		log.Info("campaign run started")
		_, err := campaign.NewDriver(client, s.cfg.Campaign, sink).Run(ctx, userID)
		return err

	case spinSession:
		if bare == "" {
			return token.ErrInvalidToken
		}
		if idErr == nil {
			log = log.WithField("user_id", userID)
		}
		client := platform.NewClient(s.cfg.Platform, bare)
		defer client.Close()

		driver, err := spin.NewDriver(client, s.cfg.Spin, sink)
		if err != nil {
			return err
		}
		log.Info("spin loop started")
		return driver.Run(ctx).Err
	}
	return fmt.Errorf("unknown session kind %q", kind)
}

// readPump drains client frames so control messages are processed, and
// cancels the run when the connection drops.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
