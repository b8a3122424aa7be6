package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type HttpMethod int

const (
	GET HttpMethod = iota
	POST
	PUT
	PATCH
	DELETE
)

func (m HttpMethod) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case PATCH:
		return "PATCH"
	case DELETE:
		return "DELETE"
	default:
		return fmt.Sprintf("HttpMethod(%d)", int(m))
	}
}

type Route struct {
	Method      HttpMethod
	Path        string
	HandlerFunc gin.HandlerFunc
	Group       string
}

func NewRoute(method HttpMethod, group, path string, handler gin.HandlerFunc) Route {
	return Route{
		Method:      method,
		Path:        path,
		Group:       group,
		HandlerFunc: handler,
	}
}

// Register mounts routes on router, one gin group per Route.Group. Middleware
// with group "*" applies to every route, otherwise only to its group.
func Register(router *gin.Engine, middlewares []Middleware, routes []Route) error {
	for _, m := range middlewares {
		if m.Group == AllGroups {
			router.Use(m.Handler)
		}
	}

	groups := map[string]*gin.RouterGroup{}
	for _, r := range routes {
		group, exists := groups[r.Group]
		if !exists {
			group = router.Group("/" + r.Group)
			for _, m := range middlewares {
				if m.Group == r.Group {
					group.Use(m.Handler)
				}
			}
			groups[r.Group] = group
		}

		switch r.Method {
		case GET:
			group.GET(r.Path, r.HandlerFunc)
		case POST:
			group.POST(r.Path, r.HandlerFunc)
		case PUT:
			group.PUT(r.Path, r.HandlerFunc)
		case PATCH:
			group.PATCH(r.Path, r.HandlerFunc)
		case DELETE:
			group.DELETE(r.Path, r.HandlerFunc)
		default:
			return fmt.Errorf("unrecognized HTTP method %s for /%s/%s", r.Method, r.Group, r.Path)
		}
	}
	return nil
}
