package application

import (
	"testing"
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
)

type fakeChecker struct {
	dec domain.Decision

	gotIdentity string
	gotScope    string
	gotNow      time.Time
}

func (f *fakeChecker) CheckEvent(identity, scope string, now time.Time) domain.Decision {
	f.gotIdentity = identity
	f.gotScope = scope
	f.gotNow = now
	return f.dec
}

func TestService_Check_AllowsWhenNoGuard(t *testing.T) {
	svc := Service{}
	dec := svc.Check("u1", "g1")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestService_Check_InjectsClock(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	guard := &fakeChecker{dec: domain.Decision{Allowed: true}}

	svc := Service{Guard: guard, Clock: func() time.Time { return fixed }}
	svc.Check("u1", "g1")

	if !guard.gotNow.Equal(fixed) {
		t.Fatalf("expected injected clock %s, got %s", fixed, guard.gotNow)
	}
	if guard.gotIdentity != "u1" || guard.gotScope != "g1" {
		t.Fatalf("expected identity/scope forwarded, got %q/%q", guard.gotIdentity, guard.gotScope)
	}
}

func TestService_Check_ForwardsDecision(t *testing.T) {
	guard := &fakeChecker{dec: domain.Decision{
		Allowed:      false,
		Reason:       domain.ReasonHighMessageRate,
		Warnings:     2,
		MuteDuration: 300 * time.Second,
	}}

	svc := Service{Guard: guard}
	dec := svc.Check("u1", "")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.Reason != domain.ReasonHighMessageRate || dec.Warnings != 2 {
		t.Fatalf("expected decision forwarded untouched, got %+v", dec)
	}
}

type fakeAdmin struct {
	unmuted bool
	reset   bool

	statsNow time.Time
}

func (f *fakeAdmin) Unmute(identity, scope string) bool {
	f.unmuted = true
	return true
}

func (f *fakeAdmin) ResetIdentity(identity, scope string) { f.reset = true }

func (f *fakeAdmin) UpdateConfig(u domain.ConfigUpdate) (domain.Config, error) {
	return u.ApplyTo(domain.DefaultConfig()), nil
}

func (f *fakeAdmin) Stats(identity, scope string, now time.Time) domain.IdentityStats {
	f.statsNow = now
	return domain.IdentityStats{Identity: identity, Scope: scope}
}

func (f *fakeAdmin) SystemStats(now time.Time) domain.SystemStats {
	f.statsNow = now
	return domain.SystemStats{}
}

func TestAdminService_InjectsClockOnReads(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	guard := &fakeAdmin{}
	svc := AdminService{Guard: guard, Clock: func() time.Time { return fixed }}

	svc.Stats("u1", "g1")
	if !guard.statsNow.Equal(fixed) {
		t.Fatalf("expected injected clock on Stats, got %s", guard.statsNow)
	}

	svc.SystemStats()
	if !guard.statsNow.Equal(fixed) {
		t.Fatalf("expected injected clock on SystemStats, got %s", guard.statsNow)
	}
}

func TestAdminService_NilGuardIsSafeForModeration(t *testing.T) {
	svc := AdminService{}
	if svc.Unmute("u1", "") {
		t.Fatalf("expected no-op unmute to report false")
	}
	svc.Reset("u1", "")
}
