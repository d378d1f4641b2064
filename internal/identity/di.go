package identity

import (
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Resolver, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return NewResolver(repo), nil
	})
}
