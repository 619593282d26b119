package app

import (
	"errors"

	"biaslens/internal/pipeline"
)

// ErrInFlight возвращается, если в сессии уже идёт анализ.
var ErrInFlight = errors.New("analysis already in progress")

// Session - состояние сеанса, которое раньше жило в глобальных флагах.
// Передаётся в Orchestrator.Run по значению и возвращается обновлённым.
type Session struct {
	InFlight bool
	Applied  bool // разметка анализа применена к последнему документу
	Source   string
	Summary  pipeline.Summary
}

// Begin помечает сессию занятой. Предыдущая разметка считается снятой.
func (s Session) Begin(source string) (Session, error) {
	if s.InFlight {
		return s, ErrInFlight
	}
	s.InFlight = true
	s.Applied = false
	s.Source = source
	s.Summary = pipeline.Summary{}
	return s, nil
}

// Finish освобождает сессию; summary == nil означает неудачный запуск.
func (s Session) Finish(summary *pipeline.Summary) Session {
	s.InFlight = false
	if summary != nil {
		s.Applied = true
		s.Summary = *summary
	}
	return s
}
