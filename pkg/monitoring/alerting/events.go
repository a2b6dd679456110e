// Package alerting 提供告警生命周期事件的订阅分发
package alerting

import (
	"sync"
	"time"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// EventHandler 告警事件处理函数
type EventHandler func(event models.AlertEvent)

// eventQueueSize 事件队列容量，写满后发布方阻塞等待消费
const eventQueueSize = 256

// eventBus 进程内的告警事件总线，向外部订阅者投递
// alert.triggered、alert.resolved、alert.acknowledged事件。
// 事件由单一分发协程按发布顺序投递，订阅者不应长时间阻塞。
type eventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler

	queue chan models.AlertEvent
	done  chan struct{}
	once  sync.Once
}

func newEventBus() *eventBus {
	b := &eventBus{
		queue: make(chan models.AlertEvent, eventQueueSize),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

// subscribe 注册一个事件处理函数
func (b *eventBus) subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// publish 将事件写入队列，同一告警的triggered先于resolved投递
func (b *eventBus) publish(eventType models.AlertEventType, alert *models.Alert) {
	b.mu.RLock()
	subscribed := len(b.handlers) > 0
	b.mu.RUnlock()

	if !subscribed {
		return
	}

	event := models.AlertEvent{
		Type:      eventType,
		Alert:     *alert.Clone(),
		Timestamp: time.Now(),
	}

	select {
	case b.queue <- event:
	case <-b.done:
	}
}

// close 停止分发协程，队列中剩余的事件先投递完
func (b *eventBus) close() {
	b.once.Do(func() { close(b.done) })
}

func (b *eventBus) run() {
	for {
		select {
		case event := <-b.queue:
			b.dispatch(event)
		case <-b.done:
			for {
				select {
				case event := <-b.queue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *eventBus) dispatch(event models.AlertEvent) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
