// Package audit records administrative actions on customer records.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kylevidrine/portal/pkg/logger"
)

const ActionCustomerDelete = "customer.delete"

// Event describes one administrative action. It never carries credentials.
type Event struct {
	Action     string    `json:"action"`
	CustomerID string    `json:"customerId"`
	Email      string    `json:"email,omitempty"`
	Deleted    bool      `json:"deleted"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

type Sink interface {
	Record(ctx context.Context, e Event) error
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Record(ctx context.Context, e Event) error {
	logger.Infof("audit: action=%s customer=%s deleted=%t actor=%s", e.Action, e.CustomerID, e.Deleted, e.Actor)
	return nil
}

// Putter is the object-store capability ArchiveSink depends on.
type Putter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ArchiveSink stores each event as a JSON object keyed by date.
type ArchiveSink struct {
	store  Putter
	prefix string
}

func NewArchiveSink(store Putter, prefix string) *ArchiveSink {
	if prefix == "" {
		prefix = "audit"
	}
	return &ArchiveSink{store: store, prefix: prefix}
}

func (a *ArchiveSink) Record(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return a.store.Put(ctx, a.key(e), b, "application/json")
}

func (a *ArchiveSink) key(e Event) string {
	at := e.At.UTC()
	return fmt.Sprintf("%s/%s/%d-%s.json", a.prefix, at.Format("2006/01/02"), at.UnixNano(), e.CustomerID)
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
