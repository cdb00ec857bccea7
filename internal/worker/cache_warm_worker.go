package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatlibrary/internal/model"
)

// MessageLister reads a session's transcript window.
type MessageLister interface {
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
}

// HistoryStore replaces the cached transcript for a session.
type HistoryStore interface {
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
}

// CacheWarmWorker consumes message-created events and rebuilds the
// Redis transcript cache for the affected session from the database.
// Writes stay synchronous in the request path; this only repairs the
// read cache after the fact.
type CacheWarmWorker struct {
	conn      *amqp.Connection
	messages  MessageLister
	history   HistoryStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCacheWarmWorker(conn *amqp.Connection, messages MessageLister, history HistoryStore, queueName string) *CacheWarmWorker {
	return &CacheWarmWorker{
		conn:      conn,
		messages:  messages,
		history:   history,
		queueName: queueName,
	}
}

func (w *CacheWarmWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handleDelivery(workerCtx, d)
			}
		}
	}()

	return nil
}

// handleDelivery decodes one event and rebuilds that session's cache.
// Undecodable and unwarmable events are dead-lettered, not requeued;
// redelivering them cannot help.
func (w *CacheWarmWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg model.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("worker decode event failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.warm(ctx, msg.SessionID); err != nil {
		log.Printf("worker warm cache failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

// warm reloads the same transcript window the read path serves by
// default (the repository's first page) and replaces the cached copy.
// The dirty marker is left to expire on its own; until it does, readers
// keep going to the database.
func (w *CacheWarmWorker) warm(ctx context.Context, sessionID uint) error {
	if sessionID == 0 {
		return fmt.Errorf("event without session id")
	}
	messages, err := w.messages.ListBySessionID(sessionID, 0)
	if err != nil {
		return err
	}
	return w.history.SetHistory(ctx, sessionID, messages)
}

func (w *CacheWarmWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
