package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "logs"
	mongoCollection = "outbound_identity"
	queueSize       = 1024
	insertTimeout   = 5 * time.Second
)

type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Mongo writes decisions to a MongoDB collection from a background
// goroutine, so a slow database never holds up mail. Decisions are dropped
// when the queue is full.
type Mongo struct {
	client     *mongo.Client
	collection inserter
	logger     logrus.FieldLogger

	// mu guards closed. Record holds it shared while sending so that Close
	// cannot close queue under it.
	mu     sync.RWMutex
	closed bool
	queue  chan Decision
	done   chan struct{}
}

func NewMongo(ctx context.Context, uri string, logger logrus.FieldLogger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	m := newMongo(client.Database(mongoDatabase).Collection(mongoCollection), logger)
	m.client = client
	return m, nil
}

func newMongo(collection inserter, logger logrus.FieldLogger) *Mongo {
	m := &Mongo{
		collection: collection,
		logger:     logger,
		queue:      make(chan Decision, queueSize),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mongo) Record(_ context.Context, d Decision) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.logger.Warnf("audit recorder closed, dropping decision for %v", d.Key)
		return
	}
	select {
	case m.queue <- d:
	default:
		m.logger.Warnf("audit queue full, dropping decision for %v", d.Key)
	}
}

func (m *Mongo) run() {
	defer close(m.done)
	for d := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		_, err := m.collection.InsertOne(ctx, d)
		cancel()
		if err != nil {
			m.logger.Errorf("error inserting audit record: %v", err)
		}
	}
}

// Close flushes queued decisions and disconnects. Decisions recorded after
// Close are dropped.
func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
