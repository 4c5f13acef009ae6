package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bili-danmu/internal/model"
)

// RecentRetryer 用于在最近缓存写入失败时进行“最终一致”补偿。
// 注意：这是一个最佳努力实现，进程退出时队列中的任务会丢失。
type RecentRetryer interface {
	Enqueue(rec model.EventRecord)
	Stop()
}

type recentRetryTask struct {
	rec     model.EventRecord
	attempt int
}

// AsyncRecentRetryer 使用内存队列 + 后台 worker 进行重试。
// - 不阻塞主流程（队列满会丢弃并打日志）
// - 重试采用指数退避
type AsyncRecentRetryer struct {
	recent RecentWriter

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	timeout     time.Duration

	queue    chan recentRetryTask
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type RetryOptions struct {
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

func NewAsyncRecentRetryer(recent RecentWriter, opts RetryOptions) *AsyncRecentRetryer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	r := &AsyncRecentRetryer{
		recent:      recent,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		timeout:     opts.Timeout,
		queue:       make(chan recentRetryTask, opts.QueueSize),
		stop:        make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *AsyncRecentRetryer) Enqueue(rec model.EventRecord) {
	if r == nil || r.recent == nil {
		return
	}
	select {
	case r.queue <- recentRetryTask{rec: rec}:
	default:
		log.Warn().Uint64("room_id", rec.RoomID).Str("event_id", rec.EventID).Msg("recent retry queue full, drop task")
	}
}

func (r *AsyncRecentRetryer) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *AsyncRecentRetryer) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case task := <-r.queue:
			r.handle(task)
		}
	}
}

func (r *AsyncRecentRetryer) handle(task recentRetryTask) {
	backoff := r.baseBackoff
	for {
		if task.attempt >= r.maxAttempts {
			log.Warn().Uint64("room_id", task.rec.RoomID).Str("event_id", task.rec.EventID).Msg("recent retry exceeded max attempts, give up")
			return
		}

		task.attempt++
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.recent.Append(ctx, task.rec)
		cancel()
		if err == nil {
			return
		}

		log.Debug().Err(err).Int("attempt", task.attempt).Str("event_id", task.rec.EventID).Msg("recent retry failed")
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
		select {
		case <-time.After(backoff):
		case <-r.stop:
			return
		}
		backoff *= 2
	}
}
