package routes

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	reg Registrar
	mws []Middleware
}

var groups = map[string]group{}

// Register adds a named route group with optional middlewares applied to
// every route of the group. Names are unique; files call it from init.
func Register(name string, reg Registrar, mws ...Middleware) {
	if _, dup := groups[name]; dup {
		panic(fmt.Sprintf("routes: group %q registered twice", name))
	}
	groups[name] = group{reg: reg, mws: mws}
}

// Groups lists registered group names in mount order.
func Groups() []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterAll mounts every group on r. Called once per router.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, name := range Groups() {
		g := groups[name]
		if len(g.mws) > 0 {
			g.reg(r.With(g.mws...), d)
			continue
		}
		g.reg(r, d)
	}
}
