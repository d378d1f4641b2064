package discord

import (
	"github.com/foxseedlab/planning-poker/internal/config"
	discordpkg "github.com/foxseedlab/planning-poker/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		if !c.DiscordEnabled() {
			return Noop{}, nil
		}
		return NewClient(c.DiscordToken)
	})
}
