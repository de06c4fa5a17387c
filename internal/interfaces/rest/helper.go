package rest

import (
	"github.com/labstack/echo/v4"
)

type endpoint struct {
	prefix      string
	middlewares []echo.MiddlewareFunc
	groups      []*apiGroup
}

type apiGroup struct {
	prefix      string
	middlewares []echo.MiddlewareFunc
	routes      []*route
}

type route struct {
	method      string
	path        string
	handler     echo.HandlerFunc
	middlewares []echo.MiddlewareFunc
}

// createEndpoint register every route with the middlewares of its endpoint and group prepended.
//
// Routes are added to the app directly so that groups sharing a prefix keep their own middlewares.
func createEndpoint(app *echo.Echo, def *endpoint) {
	for _, group := range def.groups {
		for _, api := range group.routes {
			chain := make([]echo.MiddlewareFunc, 0, len(def.middlewares)+len(group.middlewares)+len(api.middlewares))
			chain = append(chain, def.middlewares...)
			chain = append(chain, group.middlewares...)
			chain = append(chain, api.middlewares...)
			app.Add(api.method, def.prefix+group.prefix+api.path, api.handler, chain...)
		}
	}
}
