package bot

import "github.com/rs/zerolog"

const maxQueuedTasks = 1024

type task struct {
	name string
	fn   func()
}

// taskQueue is the bot-owned FIFO of deferred work. Pushes past the bound are
// dropped and logged; a full queue means the main loop is wedged, and losing
// a refill or re-broadcast is recoverable on the next cycle.
type taskQueue struct {
	log   zerolog.Logger
	tasks []task
}

func newTaskQueue(log zerolog.Logger) *taskQueue {
	return &taskQueue{log: log}
}

func (q *taskQueue) push(name string, fn func()) {
	if len(q.tasks) >= maxQueuedTasks {
		q.log.Error().Str("task", name).Int("queued", len(q.tasks)).Msg("task queue full, dropping task")
		return
	}
	q.tasks = append(q.tasks, task{name: name, fn: fn})
}

// drain runs the tasks queued so far in FIFO order. Tasks pushed while
// draining wait for the next iteration, so mutations from one event settle
// before work queued by the next runs.
func (q *taskQueue) drain() {
	if len(q.tasks) == 0 {
		return
	}
	batch := q.tasks
	q.tasks = nil
	for _, t := range batch {
		t.fn()
	}
}

func (q *taskQueue) depth() int {
	return len(q.tasks)
}
