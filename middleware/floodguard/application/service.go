package application

import (
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
)

// Service concentra a regra de aplicação do controle de flood.
//
// Ele não sabe nada sobre HTTP (headers/status): injeta o relógio no guard e
// repassa a decisão. Clock existe para fixar o tempo em testes; quando nil,
// usa o relógio de parede.
type Service struct {
	Guard domain.Checker
	Clock func() time.Time
}

func (s Service) Check(identity, scope string) domain.Decision {
	if s.Guard == nil {
		return domain.Decision{Allowed: true}
	}
	return s.Guard.CheckEvent(identity, scope, s.now())
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
