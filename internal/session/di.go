package session

import (
	"github.com/foxseedlab/planning-poker/internal/config"
	"github.com/foxseedlab/planning-poker/internal/discord"
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		rounds := do.MustInvoke[*round.Engine](i)
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, repo, rounds, dc, wh), nil
	})
}
