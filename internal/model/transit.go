package model

import "github.com/twpayne/go-geom"

// Route is one bus route's published line geometry. IDs come from the feature
// source and are not guaranteed unique; the route loader counts duplicates
// and the aggregator merges counts for a repeated ID additively.
type Route struct {
	ID   string
	Geom geom.T // LineString or MultiLineString
}

// Stop is one bus stop with the routes that serve it.
type Stop struct {
	ID     string
	Geom   *geom.Point
	Routes []string
}

// AssociationMethod records which spatial predicate linked a crime to a route.
type AssociationMethod string

const (
	MethodLineIntersect AssociationMethod = "line_intersect"
	MethodStopContains  AssociationMethod = "stop_contains"
)

// Association is one deduplicated (crime, route) link. When both predicates
// match the same pair, the first method to produce it wins and the pair is
// emitted once.
type Association struct {
	CrimeID int
	RouteID string
	Method  AssociationMethod
}
