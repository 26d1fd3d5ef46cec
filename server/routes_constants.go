package server

const (
	RouteIndex      = "/"
	RouteDashboard  = "/dashboard"
	RouteMetrics    = "/metrics"
	RouteLogin      = "/login"
	RouteLogout     = "/logout"
	RoutePrometheus = "/prometheus"
	RouteStatic     = "/static/"
)

// PermissionMetricsList gates the metrics page together with one of MetricsRoles.
const PermissionMetricsList = "metrics.list"

var MetricsRoles = []string{"administrator", "editor"}
