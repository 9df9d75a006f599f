// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// TaskQueue implements storage.TaskQueue for BadgerDB.
//
// Every task is stored under its ID and indexed by the time it becomes
// visible: RunAt while waiting, LeaseUntil while leased. A worker that dies
// holding a lease leaves the index entry in place, so the task is due again
// once the lease expires.
type TaskQueue struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.TaskQueue = (*TaskQueue)(nil)

// NewTaskQueue creates a new TaskQueue.
func NewTaskQueue(backend *Backend) *TaskQueue {
	return &TaskQueue{backend: backend, now: time.Now}
}

// dueAt returns the time a task is visible in the due index.
func dueAt(task *core.Task) time.Time {
	if task.LeaseUntil.After(task.RunAt) {
		return task.LeaseUntil
	}
	return task.RunAt
}

// Enqueue stores a task.
func (q *TaskQueue) Enqueue(ctx context.Context, task *core.Task) error {
	if task.Kind == "" {
		return storage.ErrInvalidQuery
	}
	now := q.now().UTC()
	if task.ID == "" {
		task.ID = core.NewID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.RunAt.IsZero() {
		task.RunAt = now
	}
	task.LeaseUntil = time.Time{}

	return q.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeTaskKey(task.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := writeValue(tx, key, task); err != nil {
			return err
		}
		return tx.Set(makeTaskDueKey(dueAt(task), task.ID), nil)
	})
}

// Lease returns up to max tasks due at now and hides them until now+lease.
func (q *TaskQueue) Lease(ctx context.Context, now time.Time, lease time.Duration, max int) ([]*core.Task, error) {
	if max <= 0 {
		return nil, nil
	}

	var leased []*core.Task
	err := q.backend.Update(ctx, func(tx *badger.Txn) error {
		leased = leased[:0]

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(taskDuePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var dueKeys [][]byte
		for iter.Rewind(); iter.Valid() && len(dueKeys) < max; iter.Next() {
			key := iter.Item().KeyCopy(nil)
			at, _, ok := parseTaskDueKey(key)
			if !ok {
				continue
			}
			if at.After(now) {
				break
			}
			dueKeys = append(dueKeys, key)
		}
		iter.Close()

		for _, dueKey := range dueKeys {
			_, id, _ := parseTaskDueKey(dueKey)
			if err := tx.Delete(dueKey); err != nil {
				return err
			}
			task, err := readValue[core.Task](tx, makeTaskKey(id))
			if errors.Is(err, storage.ErrNotFound) {
				// Index entry outlived its task
				continue
			}
			if err != nil {
				return err
			}

			task.LeaseUntil = now.Add(lease).UTC()
			if err := writeValue(tx, makeTaskKey(id), task); err != nil {
				return err
			}
			if err := tx.Set(makeTaskDueKey(dueAt(task), id), nil); err != nil {
				return err
			}
			leased = append(leased, task)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			// Other workers took the due tasks
			return nil, nil
		}
		return nil, err
	}
	return leased, nil
}

// Ack removes a finished task. Acking a missing task is not an error.
func (q *TaskQueue) Ack(ctx context.Context, taskID string) error {
	return q.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeTaskKey(taskID)
		task, err := readValue[core.Task](tx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(makeTaskDueKey(dueAt(task), taskID)); err != nil {
			return err
		}
		return tx.Delete(key)
	})
}

// Reschedule stores task with its new RunAt, Attempt and LastError and releases its lease.
func (q *TaskQueue) Reschedule(ctx context.Context, task *core.Task) error {
	if task.RunAt.IsZero() {
		task.RunAt = q.now().UTC()
	}
	return q.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeTaskKey(task.ID)
		stored, err := readValue[core.Task](tx, key)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeTaskDueKey(dueAt(stored), task.ID)); err != nil {
			return err
		}

		task.LeaseUntil = time.Time{}
		if err := writeValue(tx, key, task); err != nil {
			return err
		}
		return tx.Set(makeTaskDueKey(dueAt(task), task.ID), nil)
	})
}

// Tasks returns every stored task ordered by RunAt.
func (q *TaskQueue) Tasks(ctx context.Context) ([]*core.Task, error) {
	var tasks []*core.Task
	err := q.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(taskPrefix), func(_ []byte, t *core.Task) bool {
			tasks = append(tasks, t)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(tasks, func(a, b *core.Task) int {
		return a.RunAt.Compare(b.RunAt)
	})
	return tasks, nil
}

// Stats returns queue depths per task kind as seen at now.
func (q *TaskQueue) Stats(ctx context.Context, now time.Time) (map[core.TaskKind]storage.QueueStats, error) {
	tasks, err := q.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	stats := map[core.TaskKind]storage.QueueStats{
		core.TaskProcessDocument: {},
		core.TaskRetryEmbeddings: {},
	}
	for _, t := range tasks {
		s := stats[t.Kind]
		switch {
		case t.LeaseUntil.After(now):
			s.Leased++
		case !dueAt(t).After(now):
			s.Due++
		default:
			s.Scheduled++
		}
		stats[t.Kind] = s
	}
	return stats, nil
}
