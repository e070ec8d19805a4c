package api

import (
	"go.uber.org/fx"

	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/adapter/socket"
	"github.com/webitel/user-admin-client/internal/handler/lp"
	"github.com/webitel/user-admin-client/internal/handler/ws"
)

var Module = fx.Module("handlers",
	fx.Provide(
		func(m *socket.Manager) SocketController { return m },
		func(api users.API) HealthChecker { return api },
		NewHandler,
		ws.NewWSHandler,
		lp.NewLPHandler,
	),
)
