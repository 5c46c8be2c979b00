// Package host exposes Go functions to foreign code by reflection.
//
// A handler is any function of the shape
//
//	func([*runtime.Runtime,] args...) [(result)] [error]
//
// Each argument is decoded with transcoder.Unmarshal and the result is
// encoded with transcoder.Marshal. A returned error, or a panic, is raised
// on the foreign side through the bridge. Arguments of type value.Value are
// passed raw and are only valid until the handler's first allocation.
//
// Hosts group handlers under a namespace:
//
//	type Geometry struct{}
//
//	func (Geometry) Namespace() string                { return "geo" }
//	func (Geometry) Distance(a, b Point) float64      { ... }   // geo_distance
//	func (Geometry) ParseWKT(s string) (Shape, error) { ... }   // geo_parse_wkt
//
//	reg := host.NewRegistry()
//	reg.RegisterHost(Geometry{})
//	reg.Bind(heap)
package host
