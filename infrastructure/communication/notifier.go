package communication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"calman.com/worklog/core"
	"go.uber.org/zap"
)

const (
	queueSize   = 64
	postTimeout = 10 * time.Second
)

// SlackNotifier forwards notices at or above MinLevel to Slack. Warnings and
// errors go to the error channel, the rest to the info channel. Posting happens
// on a background goroutine so Notify never blocks the caller.
type SlackNotifier struct {
	slack    *Slack
	minLevel core.Level
	source   string
	logger   *zap.Logger

	queue chan core.Notice
	wg    sync.WaitGroup
	once  sync.Once
	mu    sync.RWMutex
	done  bool
}

func NewSlackNotifier(slack *Slack, minLevel core.Level, source string, logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &SlackNotifier{
		slack:    slack,
		minLevel: minLevel,
		source:   source,
		logger:   logger,
		queue:    make(chan core.Notice, queueSize),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *SlackNotifier) Notify(notice core.Notice) {
	if notice.Level < n.minLevel {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.done {
		return
	}
	select {
	case n.queue <- notice:
	default:
		n.logger.Warn("slack queue full, dropping notice", zap.String("message", notice.Message))
	}
}

func (n *SlackNotifier) run() {
	defer n.wg.Done()
	for notice := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		text := n.format(notice)

		var err error
		if notice.Level >= core.LevelWarning {
			err = n.slack.Error(ctx, text)
		} else {
			err = n.slack.Info(ctx, text)
		}
		cancel()
		if err != nil {
			n.logger.Warn("slack notice failed", zap.Error(err))
		}
	}
}

func (n *SlackNotifier) format(notice core.Notice) string {
	if n.source == "" {
		return fmt.Sprintf("[%s] %s", notice.Level, notice.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", notice.Level, n.source, notice.Message)
}

// Close stops accepting notices and waits for the queued ones to be posted.
func (n *SlackNotifier) Close() {
	n.once.Do(func() {
		n.mu.Lock()
		n.done = true
		close(n.queue)
		n.mu.Unlock()
		n.wg.Wait()
	})
}
