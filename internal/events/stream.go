package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/pkg/metrics"
)

const (
	// StreamName is the name of the plan events stream.
	StreamName = "ACTION_PLANS"

	// SubjectPrefix is the prefix for all plan subjects.
	SubjectPrefix = "plans"
)

// ErrDisabled is returned by history reads when no stream is configured.
var ErrDisabled = errors.New("plan events are disabled")

// Stream publishes plan events and reads them back.
type Stream interface {
	Publish(ctx context.Context, event *model.PlanEvent) (uint64, error)
	History(ctx context.Context, userID, planID string, afterSequence uint64, limit int) (*model.PlanEventsResponse, error)
}

// JetStream is the JetStream-backed Stream.
type JetStream struct {
	js jetstream.JetStream
}

// NewJetStream creates a stream backed by the given JetStream context.
func NewJetStream(js jetstream.JetStream) *JetStream {
	return &JetStream{js: js}
}

// EnsureStream creates the plan events stream if it does not exist.
func (s *JetStream) EnsureStream(ctx context.Context) error {
	if _, err := s.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := s.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Action plan lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// EventSubject returns the subject for an event.
func EventSubject(userID, planID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, subjectToken(userID), subjectToken(planID), eventType)
}

// PlanFilter returns the filter subject for all events of a plan.
func PlanFilter(userID, planID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, subjectToken(userID), subjectToken(planID))
}

// Publish stores an event in the stream. Missing ids and timestamps are
// filled in; the id doubles as the deduplication key.
func (s *JetStream) Publish(ctx context.Context, event *model.PlanEvent) (uint64, error) {
	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := s.js.Publish(ctx, EventSubject(event.UserID, event.PlanID, event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		metrics.PlanEventsTotal.WithLabelValues(string(event.Type), "error").Inc()
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.PlanEventsTotal.WithLabelValues(string(event.Type), "success").Inc()

	event.Sequence = ack.Sequence
	return ack.Sequence, nil
}

// History returns up to limit events for a plan after the given stream
// sequence, oldest first.
func (s *JetStream) History(ctx context.Context, userID, planID string, afterSequence uint64, limit int) (*model.PlanEventsResponse, error) {
	if limit <= 0 {
		limit = 50
	}

	cfg := jetstream.ConsumerConfig{
		FilterSubject: PlanFilter(userID, planID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := s.js.CreateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	resp := &model.PlanEventsResponse{Events: []model.PlanEvent{}, LastSequence: afterSequence}
	for msg := range batch.Messages() {
		var event model.PlanEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
			resp.LastSequence = meta.Sequence.Stream
		}
		resp.Events = append(resp.Events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	resp.HasMore = len(resp.Events) == limit
	return resp, nil
}

// Nop discards events. It is used when NATS is not configured.
type Nop struct{}

// Publish implements Stream.
func (Nop) Publish(context.Context, *model.PlanEvent) (uint64, error) {
	return 0, nil
}

// History implements Stream.
func (Nop) History(context.Context, string, string, uint64, int) (*model.PlanEventsResponse, error) {
	return nil, ErrDisabled
}
