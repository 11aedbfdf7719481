package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// Persister saves a session's history off the reply path. Implementations
// log failures and never report them to the caller.
type Persister interface {
	Persist(k Key, history []Turn)
}

type TurnAppender interface {
	AppendTurn(ctx context.Context, k Key, history []Turn) (string, error)
}

// AsyncPersister writes each history in its own goroutine with a detached,
// bounded context.
type AsyncPersister struct {
	store   TurnAppender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncPersister(store TurnAppender, timeout time.Duration) *AsyncPersister {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncPersister{store: store, timeout: timeout}
}

func (p *AsyncPersister) Persist(k Key, history []Turn) {
	if k.UserID == "" {
		return
	}
	snapshot := append([]Turn(nil), history...)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if _, err := p.store.AppendTurn(ctx, k, snapshot); err != nil {
			log.Printf("[Persist] save failed session=%s user=%s persona=%s err=%v", k.SessionID, k.UserID, k.PersonaID, err)
		}
	}()
}

// Wait blocks until every in-flight write has finished.
func (p *AsyncPersister) Wait() { p.wg.Wait() }

type JobPublisher interface {
	PublishPersist(ctx context.Context, job PersistJob) error
}

// QueuePersister hands histories to the worker through a message queue.
type QueuePersister struct {
	pub     JobPublisher
	timeout time.Duration
	now     func() time.Time
}

func NewQueuePersister(pub JobPublisher, timeout time.Duration) *QueuePersister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QueuePersister{pub: pub, timeout: timeout, now: time.Now}
}

func (p *QueuePersister) Persist(k Key, history []Turn) {
	if k.UserID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.pub.PublishPersist(ctx, NewPersistJob(k, history, p.now())); err != nil {
		log.Printf("[Persist] enqueue failed session=%s user=%s err=%v", k.SessionID, k.UserID, err)
	}
}
