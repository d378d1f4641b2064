package httpapi

import (
	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/session"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		participants := do.MustInvoke[*identity.Resolver](i)
		sessions := do.MustInvoke[*session.Manager](i)
		rounds := do.MustInvoke[*round.Engine](i)
		notifier := do.MustInvoke[watch.Notifier](i)
		return NewServer(participants, sessions, rounds, notifier), nil
	})
}
