package sync

import (
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// tracker связывает машину состояний запуска с его записью в БД.
// Ошибка записи в sync_runs не прерывает синхронизацию: операционная
// видимость вторична относительно самих данных.
type tracker struct {
	run      *Run
	runs     RunStore
	runID    int
	syncType string
	log      *zap.Logger
}

// newTracker фиксирует старт запуска и переводит машину в fetching
func newTracker(runs RunStore, syncType string, accountID int, log *zap.Logger) *tracker {
	t := &tracker{
		run:      NewRun(),
		runs:     runs,
		syncType: syncType,
		log:      log,
	}

	id, err := runs.Begin(syncType, accountID, time.Now().UTC())
	if err != nil {
		log.Error("failed to record sync run start", zap.Error(err))
	} else {
		t.runID = id
	}

	if err := t.run.To(StateFetching); err != nil {
		log.Error("run state error", zap.Error(err))
	}

	return t
}

// to переводит машину в следующее состояние
func (t *tracker) to(state string) {
	if err := t.run.To(state); err != nil {
		t.log.Error("run state error", zap.Error(err))
	}
}

// succeed закрывает запуск успехом
func (t *tracker) succeed() {
	t.to(StateSucceeded)
	RecordRun(t.syncType, "succeeded")

	if t.runID == 0 {
		return
	}
	if err := t.runs.Succeed(t.runID, time.Now().UTC()); err != nil {
		t.log.Error("failed to record sync run result", zap.Error(err))
	}
}

// fail закрывает запуск провалом, сохраняя ошибку и стек
func (t *tracker) fail(cause error) {
	t.to(StateFailed)
	RecordRun(t.syncType, "failed")

	if t.runID == 0 {
		return
	}
	if err := t.runs.Fail(t.runID, cause.Error(), string(debug.Stack()), time.Now().UTC()); err != nil {
		t.log.Error("failed to record sync run result", zap.Error(err))
	}
}
