// Package debounce 提供按 key 单槽的防抖定时器。
package debounce

import (
	"sync"
	"time"
)

// Timer 可取消的定时器。
type Timer interface {
	Stop() bool
}

// AfterFunc 定时器工厂，默认 time.AfterFunc，测试中可替换。
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer 每个 key 最多一个待执行动作，新的调度会取消并替换旧的。
type Debouncer struct {
	mu        sync.Mutex
	pending   map[string]*slot
	seq       uint64
	afterFunc AfterFunc
}

type slot struct {
	timer Timer
	gen   uint64
}

// New 创建 Debouncer，afterFunc 为空时使用 time.AfterFunc。
func New(afterFunc AfterFunc) *Debouncer {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Debouncer{pending: make(map[string]*slot), afterFunc: afterFunc}
}

// Schedule 在静默期 d 之后执行 fn；同 key 的旧动作被取消。
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.pending[key]; ok {
		old.timer.Stop()
	}
	d.seq++
	gen := d.seq
	s := &slot{gen: gen}
	d.pending[key] = s
	s.timer = d.afterFunc(delay, func() {
		d.mu.Lock()
		cur, ok := d.pending[key]
		if !ok || cur.gen != gen {
			// 已被替换或取消，Stop 未能及时阻止时在这里丢弃
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel 取消 key 对应的待执行动作，返回是否存在。
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.pending[key]
	if !ok {
		return false
	}
	s.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending 返回 key 是否有待执行动作。
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop 取消全部待执行动作。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.pending {
		s.timer.Stop()
		delete(d.pending, key)
	}
}
