package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
)

type testPublisher struct {
	mu        sync.Mutex
	published []*message.Message
	topics    []string
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, msg := range messages {
		p.topics = append(p.topics, topic)
		p.published = append(p.published, msg)
	}
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.published))
	copy(clone, p.published)
	return clone
}

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.topics))
	copy(clone, p.topics)
	return clone
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

// notifyingSubscriber closes subscribed once the wrapped Subscribe returns.
type notifyingSubscriber struct {
	message.Subscriber
	subscribed chan struct{}
	once       sync.Once
}

func newNotifyingSubscriber(sub message.Subscriber) *notifyingSubscriber {
	return &notifyingSubscriber{Subscriber: sub, subscribed: make(chan struct{})}
}

func (s *notifyingSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := s.Subscriber.Subscribe(ctx, topic)
	s.once.Do(func() { close(s.subscribed) })
	return ch, err
}

func (s *notifyingSubscriber) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.subscribed:
	case <-time.After(time.Second):
		t.Fatal("subscription not established")
	}
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// recordingLogger is safe for concurrent use; children share the parent's
// entry list.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	l := &recordingLogger{}
	l.init()
	return l
}

func (l *recordingLogger) init() {
	if l.mu == nil {
		l.mu = &sync.Mutex{}
		l.entries = &[]logEntry{}
	}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	l.init()
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
	l.mu.Unlock()
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.Logger {
	l.init()
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: fields}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Warn(msg string, fields loggingpkg.LogFields) {
	l.record("warn", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) all() []logEntry {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := make([]logEntry, len(*l.entries))
	copy(clone, *l.entries)
	return clone
}

func (l *recordingLogger) byLevel(level string) []logEntry {
	var out []logEntry
	for _, e := range l.all() {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

func (l *recordingLogger) warns() []logEntry { return l.byLevel("warn") }
