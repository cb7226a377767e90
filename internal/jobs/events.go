// Package jobs 实现了文档摄取任务的状态机与生命周期事件分发。
package jobs

import (
	"sync"
	"time"

	"docuchat-go/internal/model"
	"docuchat-go/pkg/log"
)

// subscriberBuffer 是每个订阅者通道的缓冲大小。
const subscriberBuffer = 64

// terminalPublishWait 是终态事件在订阅者缓冲满时的最长等待时间。
const terminalPublishWait = 500 * time.Millisecond

// subscriber 是一个事件订阅者。jobID 为空表示订阅全部任务的事件。
type subscriber struct {
	jobID string
	ch    chan model.ProcessingEvent
}

// EventBus 在进程内向订阅者分发处理事件。
// 投递语义是 at-least-once：订阅者可能看到重复的终态事件，必须幂等处理；
// 消费过慢的订阅者会丢失中间的 progress 事件，但任务快照随时可查询。
type EventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// NewEventBus 创建一个新的事件总线。
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]*subscriber)}
}

// Subscribe 注册一个订阅者。jobID 为空时接收全部任务的事件。
// 返回订阅 ID（用于退订）与只读事件通道。
func (b *EventBus) Subscribe(jobID string) (int, <-chan model.ProcessingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{jobID: jobID, ch: make(chan model.ProcessingEvent, subscriberBuffer)}
	b.subs[id] = sub
	return id, sub.ch
}

// Unsubscribe 注销订阅者并关闭其通道。
func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish 将事件分发给所有匹配的订阅者。
// 单个任务内事件有序（created → started → progress... → 终态），跨任务无序。
// progress 等中间事件在订阅者缓冲满时直接丢弃；终态事件承诺恰好一次送达，
// 缓冲满时短暂阻塞等待订阅者消费，超时才放弃。
func (b *EventBus) Publish(event model.ProcessingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	terminal := event.Type == model.EventJobCompleted || event.Type == model.EventJobFailed
	for id, sub := range b.subs {
		if sub.jobID != "" && sub.jobID != event.JobID {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		if terminal {
			select {
			case sub.ch <- event:
				continue
			case <-time.After(terminalPublishWait):
			}
		}
		log.Warnf("[EventBus] 订阅者 %d 事件缓冲已满, 丢弃事件 %s (job=%s)", id, event.Type, event.JobID)
	}
}
