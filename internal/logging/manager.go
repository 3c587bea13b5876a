package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Компоненты сервера с собственными логгерами
const (
	ComponentNetwork   = "network"
	ComponentWorld     = "world"
	ComponentStorage   = "storage"
	ComponentTranslate = "translate"
	ComponentGate      = "gate"
)

// components логгеры подсистем. Уровень консоли общий: SetConsoleLevel
// меняет его и для уже созданных, и для будущих логгеров.
var components = struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	level   LogLevel
}{loggers: make(map[string]*Logger), level: INFO}

// GetComponentLogger возвращает логгер компонента, создавая его при первом
// обращении. Если файл логов открыть не удалось, логгер пишет только в консоль.
func GetComponentLogger(component string) *Logger {
	components.mu.Lock()
	defer components.mu.Unlock()

	if l, ok := components.loggers[component]; ok {
		return l
	}
	l, err := NewLogger(component)
	if err != nil {
		defaultLogger.log(WARN, "⚠️ Логгер %s без файла: %v", component, err)
		l = &Logger{
			component:     component,
			consoleLogger: defaultLogger.consoleLogger,
			minFileLevel:  ERROR,
		}
	}
	l.minConsoleLevel = components.level
	components.loggers[component] = l
	return l
}

// ComponentNames имена созданных логгеров в алфавитном порядке
func ComponentNames() []string {
	components.mu.Lock()
	defer components.mu.Unlock()
	names := make([]string, 0, len(components.loggers))
	for name := range components.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setComponentsLevel(level LogLevel) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.level = level
	for _, l := range components.loggers {
		l.mu.Lock()
		l.minConsoleLevel = level
		l.mu.Unlock()
	}
}

// closeComponents закрывает файлы логгеров компонентов и забывает их
func closeComponents() error {
	components.mu.Lock()
	defer components.mu.Unlock()

	var errs []error
	for name, l := range components.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", name, err))
		}
	}
	components.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetNetworkLogger() *Logger   { return GetComponentLogger(ComponentNetwork) }
func GetWorldLogger() *Logger     { return GetComponentLogger(ComponentWorld) }
func GetStorageLogger() *Logger   { return GetComponentLogger(ComponentStorage) }
func GetTranslateLogger() *Logger { return GetComponentLogger(ComponentTranslate) }
func GetGateLogger() *Logger      { return GetComponentLogger(ComponentGate) }
