package application

import (
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
)

// AdminService expõe a superfície administrativa do guard para adapters
// (API HTTP, CLI), injetando o relógio nas leituras.
type AdminService struct {
	Guard domain.Admin
	Clock func() time.Time
}

// Unmute remove o mute da identidade, se houver. Não mexe nos warnings:
// a próxima infração continua escalonando de onde parou.
func (s AdminService) Unmute(identity, scope string) bool {
	if s.Guard == nil {
		return false
	}
	return s.Guard.Unmute(identity, scope)
}

// Reset apaga janela, warnings e mute da identidade de uma vez; depois disso
// ela se comporta como nunca vista.
func (s AdminService) Reset(identity, scope string) {
	if s.Guard == nil {
		return
	}
	s.Guard.ResetIdentity(identity, scope)
}

func (s AdminService) UpdateConfig(u domain.ConfigUpdate) (domain.Config, error) {
	return s.Guard.UpdateConfig(u)
}

func (s AdminService) Stats(identity, scope string) domain.IdentityStats {
	return s.Guard.Stats(identity, scope, s.now())
}

func (s AdminService) SystemStats() domain.SystemStats {
	return s.Guard.SystemStats(s.now())
}

func (s AdminService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
