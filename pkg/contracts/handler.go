package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Pinger is a dependency probed by health and readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
