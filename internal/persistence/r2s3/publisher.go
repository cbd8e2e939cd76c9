package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	Queued   uint64
	Uploaded uint64
	Failed   uint64
}

// Publisher uploads the artifacts of one run under <prefix>/<run id>/<file name>. Unlike
// region rows, artifacts are never dropped: Add blocks while every worker is busy.
type Publisher struct {
	client *Client
	prefix string
	runID  string
	log    *log.Logger

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once

	queued   atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64

	// retryBase scales the quadratic backoff between attempts.
	retryBase time.Duration
}

func NewPublisher(client *Client, prefix, runID string, workers int, logger *log.Logger) *Publisher {
	if workers <= 0 {
		workers = 2
	}
	p := &Publisher{
		client:    client,
		prefix:    strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		runID:     runID,
		log:       logger,
		jobs:      make(chan string, workers),
		retryBase: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for local := range p.jobs {
				p.upload(local)
			}
		}()
	}
	return p
}

func (p *Publisher) Key(localPath string) string {
	return path.Join(p.prefix, p.runID, filepath.Base(localPath))
}

func (p *Publisher) Add(localPath string) {
	if p == nil || strings.TrimSpace(localPath) == "" {
		return
	}
	p.queued.Add(1)
	p.jobs <- localPath
}

// Wait stops accepting artifacts and returns once every queued upload has finished.
func (p *Publisher) Wait() Stats {
	if p == nil {
		return Stats{}
	}
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
	})
	return Stats{Queued: p.queued.Load(), Uploaded: p.uploaded.Load(), Failed: p.failed.Load()}
}

func (p *Publisher) upload(local string) {
	key := p.Key(local)
	if err := p.putWithRetry(key, local); err != nil {
		p.failed.Add(1)
		p.printf("upload failed key=%s local=%s err=%v", key, local, err)
		return
	}
	p.uploaded.Add(1)
	p.printf("uploaded key=%s", key)
}

func (p *Publisher) putWithRetry(key, local string) error {
	const maxAttempts = 4
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := p.client.PutFile(ctx, key, local)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * p.retryBase)
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (p *Publisher) printf(format string, args ...any) {
	if p.log != nil {
		p.log.Printf(format, args...)
	}
}
