package round

import (
	"github.com/foxseedlab/planning-poker/internal/config"
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewEngine(repo, Policy{
			RoundingPlaces:    int32(cfg.MeanRoundingPlaces),
			ExcludeNonNumeric: cfg.MeanExcludeNonNumeric,
		}), nil
	})
}
