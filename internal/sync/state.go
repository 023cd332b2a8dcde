package sync

import "fmt"

// Состояния запуска синхронизации.
//
// Жизненный цикл линеен: idle -> fetching -> validating -> upserting ->
// succeeded. Из любого промежуточного состояния возможен переход в
// failed. Конечные состояния переходов не имеют.
const (
	StateIdle       = "idle"
	StateFetching   = "fetching"
	StateValidating = "validating"
	StateUpserting  = "upserting"
	StateSucceeded  = "succeeded"
	StateFailed     = "failed"
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[string][]string{
	StateIdle:       {StateFetching},
	StateFetching:   {StateValidating, StateFailed},
	StateValidating: {StateUpserting, StateFailed},
	StateUpserting:  {StateSucceeded, StateFailed},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Run отслеживает состояние одного запуска синхронизации
type Run struct {
	state string
}

// NewRun создает запуск в состоянии idle
func NewRun() *Run {
	return &Run{state: StateIdle}
}

// State возвращает текущее состояние
func (r *Run) State() string {
	return r.state
}

// To переводит запуск в состояние state.
// Недопустимый переход - ошибка программиста, не данных.
func (r *Run) To(state string) error {
	if !CanTransition(r.state, state) {
		return fmt.Errorf("invalid run transition %s -> %s", r.state, state)
	}
	r.state = state
	return nil
}

// Terminal возвращает true для конечных состояний
func (r *Run) Terminal() bool {
	return r.state == StateSucceeded || r.state == StateFailed
}
