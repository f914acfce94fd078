package router

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/monsterutils/adrefresh/endpoints"
	"github.com/monsterutils/adrefresh/readiness"
	"github.com/rs/cors"
)

// Deps are the collaborators behind the admin API.
type Deps struct {
	Loop       endpoints.Loop
	Slots      endpoints.Slots
	Readiness  *readiness.Signal
	InitStatus endpoints.InitStatusSource
	Version    string
	Revision   string
}

// Router is the admin API of the ad slots.
type Router struct {
	*httprouter.Router
}

// New builds the admin routes.
func New(deps Deps) *Router {
	r := &Router{
		Router: httprouter.New(),
	}

	r.GET("/status", endpoints.NewStatusEndpoint(deps.Loop, deps.Slots, deps.Readiness, deps.InitStatus))
	r.GET("/ready", endpoints.NewReadyEndpoint(deps.Readiness))
	r.Handler(http.MethodGet, "/version", endpoints.NewVersionEndpoint(deps.Version, deps.Revision))

	r.POST("/slots/:slot/enable", endpoints.NewSlotActionEndpoint(deps.Loop, deps.Slots, "enable", endpoints.EnableSlot))
	r.POST("/slots/:slot/disable", endpoints.NewSlotActionEndpoint(deps.Loop, deps.Slots, "disable", endpoints.DisableSlot))
	r.POST("/slots/:slot/store", endpoints.NewSlotActionEndpoint(deps.Loop, deps.Slots, "store", endpoints.ClickStore))

	return r
}

// SupportCORS lets in-game debug overlays served from other origins read the admin API.
// The API carries no credentials, so every origin is allowed.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
