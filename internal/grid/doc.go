// Package grid owns the discretised reconstruction domain.
//
// Responsibilities: rectangular cell geometry, emitter-to-sensor rays and
// dense per-cell value maps. Key types: Geometry, Ray, Map, Field.
//
// Dependency rule: grid depends on nothing else in this module. Influence
// models, collaborators and engines all build on it.
package grid
