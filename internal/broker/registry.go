package broker

import (
	"sync"
)

// Registry - кеш адаптеров бирж на процесс.
//
// Адаптер строится лениво при первом обращении и переиспользуется:
// повторное конструирование бессмысленно, адаптеры не хранят секретов
// аккаунтов (учётные данные передаются в каждый вызов). Создаётся один
// раз при старте процесса и передаётся синхронизаторам по ссылке.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Broker
}

// NewRegistry создаёт пустой реестр адаптеров
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]Broker),
	}
}

// For возвращает адаптер для биржи, строя его при первом обращении
func (r *Registry) For(exchangeName string) (Broker, error) {
	r.mu.RLock()
	b, ok := r.instances[exchangeName]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Другая горутина могла успеть построить адаптер
	if b, ok := r.instances[exchangeName]; ok {
		return b, nil
	}

	b, err := New(exchangeName)
	if err != nil {
		return nil, err
	}
	r.instances[exchangeName] = b
	return b, nil
}
