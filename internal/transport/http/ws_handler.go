package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/config"
	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/live"
	"github.com/vovakirdan/eventlify-server/internal/proto"
	"github.com/vovakirdan/eventlify-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to the live attendance service.
type WSHandler struct {
	live           *live.Service
	cfg            config.LiveConfig
	originPatterns []string
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(liveSvc *live.Service, cfg config.LiveConfig, originPatterns []string, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		live:           liveSvc,
		cfg:            cfg,
		originPatterns: originPatterns,
		log:            logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewConnID(), h.cfg.ClientBuffer)
	if err := h.live.Connect(r.Context(), client); err != nil {
		h.log.Error().Err(err).Msg("failed to register ws client")
		_ = conn.Close(websocket.StatusTryAgainLater, "server unavailable")
		return
	}
	// Runs after both loops have exited; the request context may already be cancelled.
	defer h.live.Disconnect(context.WithoutCancel(r.Context()), client)

	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Debug().Str("client_id", client.ID).Msg("ws client disconnected")
	_ = conn.Close(status, reason)
}

// readLoop handles inbound frames one at a time, so operations of a single
// connection are applied in the order they were sent.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.RatePerSec, h.cfg.Burst)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := wsjson.Write(ctx, conn, protoError(core.ErrCodeInvalidMessage, "text frames only")); err != nil {
				return err
			}
			continue
		}

		if !limiter.allow() {
			h.log.Debug().Str("client_id", client.ID).Msg("ws client rate limited")
			if err := wsjson.Write(ctx, conn, protoError(core.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("malformed ws frame")
			if err := wsjson.Write(ctx, conn, protoError(core.ErrCodeInvalidMessage, "malformed json")); err != nil {
				return err
			}
			continue
		}

		if reply, ok := h.dispatch(ctx, client, inbound); ok {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return err
			}
		}
	}
}

// dispatch applies one inbound message and returns the direct reply, if any.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) (proto.Outbound, bool) {
	switch inbound.Type {
	case proto.InboundTypeSubscribe, proto.InboundTypeJoin, proto.InboundTypeLeave:
	default:
		return protoError(core.ErrCodeBadRequest, "unknown message type"), true
	}

	eventID, err := proto.ParseEventID(inbound.Data)
	if err != nil {
		if inbound.Type == proto.InboundTypeSubscribe {
			// Subscribing never fails the caller; an unusable id reads as zero
			// and a scalar id is echoed back as sent.
			return ackAttendance(inbound.ID, live.Attendance{EventID: proto.ScalarText(inbound.Data)}), true
		}
		return protoError(core.ErrCodeBadRequest, err.Error()), true
	}

	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		return ackAttendance(inbound.ID, h.live.Subscribe(ctx, eventID)), true
	case proto.InboundTypeJoin:
		h.live.Join(ctx, client, eventID)
	case proto.InboundTypeLeave:
		h.live.Leave(ctx, client, eventID)
	}
	return proto.Outbound{}, false
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
