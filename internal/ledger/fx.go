package ledger

import (
	"github.com/smallbiznis/taxledger/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
	fx.Provide(service.NewAccountResolver),
	fx.Provide(service.NewStore),
	fx.Provide(service.ProvideStore),
)
