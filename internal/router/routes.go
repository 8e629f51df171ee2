package router

import "postly/internal/domain"

// Screen routes.
const (
	RouteLanding        = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteFeed           = "/feed"
	RouteUsers          = "/users"
	RouteProfile        = "/profile"
	RouteChangePassword = "/change-password"
	RouteCreatePost     = "/create-post"
	RouteEditPost       = "/edit-post"
	RouteCreateUser     = "/create-user"
	RouteEditUser       = "/edit-user"
)

// Landing is where authenticated users are sent when they hit a public route.
const Landing = RouteFeed

var publicRoutes = map[string]struct{}{
	RouteLanding: {},
	RouteLogin:   {},
	RouteSignup:  {},
}

// IsPublic reports whether route belongs to the unauthenticated group.
func IsPublic(route string) bool {
	_, ok := publicRoutes[route]
	return ok
}

type restriction struct {
	allowed  domain.Role
	fallback string
}

// Routes only one role may open, and where everyone else is sent instead.
var restricted = map[string]restriction{
	RouteChangePassword: {allowed: domain.RoleProfessor, fallback: RouteProfile},
	RouteUsers:          {allowed: domain.RoleProfessor, fallback: RouteFeed},
	RouteCreateUser:     {allowed: domain.RoleProfessor, fallback: RouteFeed},
	RouteEditUser:       {allowed: domain.RoleProfessor, fallback: RouteFeed},
	RouteCreatePost:     {allowed: domain.RoleProfessor, fallback: RouteFeed},
	RouteEditPost:       {allowed: domain.RoleProfessor, fallback: RouteFeed},
}

// Allowed reports whether role may open route. Unrestricted routes are open to
// every role.
func Allowed(route string, role domain.Role) bool {
	r, ok := restricted[route]
	return !ok || r.allowed == role
}
