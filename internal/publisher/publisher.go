package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
	"github.com/Checker-Finance/recommend-go/pkg/model"
)

const (
	EventEmailChannelSynced = "recommend.email_channel.synced"
	eventVersion            = "1.0.0"
)

// JetStream is the part of nats.JetStreamContext the publisher uses.
type JetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a NATS connection and publishes canonical event envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      JetStream
	subject string
	service string
	logger  *zap.Logger
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, subject, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	p := NewWithJetStream(js, subject, service, logger)
	p.nc = nc
	return p, nil
}

// NewWithJetStream creates a Publisher over an existing JetStream context.
func NewWithJetStream(js JetStream, subject, service string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{js: js, subject: subject, service: service, logger: logger}
}

// PublishEnvelope serializes and publishes env. An empty subject uses the default.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"account":        []string{env.Account},
			// JetStream drops duplicates with the same message ID inside its window.
			nats.MsgIdHdr: []string{env.ID.String()},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("event_type", env.EventType))
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// Name identifies the publisher as a channel sink.
func (p *Publisher) Name() string { return "nats" }

// Write publishes a synced email channel as an envelope on the default subject.
func (p *Publisher) Write(ctx context.Context, rec model.EmailChannelRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Account:       rec.Account,
		Topic:         p.subject,
		EventType:     EventEmailChannelSynced,
		Version:       eventVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}
	return p.PublishEnvelope(ctx, "", env)
}

// HealthCheck reports whether the NATS connection is usable.
func (p *Publisher) HealthCheck(context.Context) error {
	if p.nc == nil {
		return nil
	}
	if !p.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return p.nc.FlushTimeout(time.Second)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
