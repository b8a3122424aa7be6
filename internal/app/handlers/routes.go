package handlers

import "idp-node/pkg/rest"

type Handlers struct {
	Callback *CallbackHandler
	Response *ResponseHandler
	Identity *IdentityHandler
	Health   *HealthHandler
}

func (h Handlers) Routes() []rest.Route {
	return []rest.Route{
		rest.NewRoute(rest.POST, "idp", "callback", h.Callback.SetCallbackURLs),
		rest.NewRoute(rest.GET, "idp", "callback", h.Callback.GetCallbackURLs),
		rest.NewRoute(rest.POST, "idp", "response", h.Response.CreateIdpResponse),
		rest.NewRoute(rest.POST, "", "identity", h.Identity.CreateIdentity),
		rest.NewRoute(rest.POST, "", "identity/accessors", h.Identity.AddAccessor),
		rest.NewRoute(rest.GET, "", "health", h.Health.Health),
	}
}
