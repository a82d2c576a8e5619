// Package audit records one request log row per gateway request without
// holding up the response.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/leadkit/gateway/internal/metrics"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/service"
)

const (
	// DefaultBufferSize is used when New is given a non-positive size.
	DefaultBufferSize = 1024
	writeTimeout      = 5 * time.Second
	maxFieldLength    = 2048
)

// Sink persists audit rows.
type Sink interface {
	InsertRequestLog(ctx context.Context, entry *model.RequestLog) error
}

// Logger queues entries on a buffered channel drained by one goroutine.
// Write failures are logged and dropped.
type Logger struct {
	sink   Sink
	logger *slog.Logger
	queue  chan model.RequestLog

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts the drain goroutine. Call Close to flush and stop it.
func New(sink Sink, logger *slog.Logger, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	l := &Logger{
		sink:   sink,
		logger: logger,
		queue:  make(chan model.RequestLog, bufferSize),
		done:   make(chan struct{}),
	}
	go l.drain()
	return l
}

// Record builds the audit entry for a finished request and enqueues it.
// It never blocks; when the buffer is full the entry is dropped.
func (l *Logger) Record(res service.AuthResult, r *http.Request, status int, elapsed time.Duration, requestID string, err error) {
	entry := model.RequestLog{
		Method:         r.Method,
		Path:           truncate(r.URL.Path),
		Query:          truncate(r.URL.RawQuery),
		ClientIP:       service.ClientIP(r),
		UserAgent:      truncate(r.UserAgent()),
		Status:         status,
		ResponseTimeMs: elapsed.Milliseconds(),
		RequestID:      truncate(requestID),
		CreatedAt:      time.Now().UTC(),
	}
	if res.KeyID != "" {
		id := res.KeyID
		entry.APIKeyID = &id
	}
	if res.OK {
		org := res.OrganizationID
		entry.OrganizationID = &org
	}
	if msg := errorText(res, err); msg != "" {
		entry.Error = &msg
	}
	l.Enqueue(entry)
}

// Enqueue adds a prepared entry to the queue.
func (l *Logger) Enqueue(entry model.RequestLog) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- entry:
	default:
		metrics.AuditDropped.Inc()
		l.logger.Warn("audit buffer full, dropping entry", "path", entry.Path, "status", entry.Status)
	}
}

// Close stops accepting entries and waits until queued ones are written
// or ctx ends.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) drain() {
	defer close(l.done)
	for entry := range l.queue {
		l.write(entry)
	}
}

func (l *Logger) write(entry model.RequestLog) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.AuditWriteErrors.Inc()
			l.logger.Error("audit write panicked", "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := l.sink.InsertRequestLog(ctx, &entry); err != nil {
		metrics.AuditWriteErrors.Inc()
		l.logger.Warn("audit write failed", "path", entry.Path, "error", err)
	}
}

func errorText(res service.AuthResult, err error) string {
	switch {
	case err != nil:
		return truncate(err.Error())
	case !res.OK && res.Cause != "":
		return res.Cause
	default:
		return ""
	}
}

func truncate(s string) string {
	if len(s) > maxFieldLength {
		return s[:maxFieldLength]
	}
	return s
}
