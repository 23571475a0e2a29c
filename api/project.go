package api

// Project is the on-disk form of a vmgen project file (HCL).
//
//	output  = "gen"
//	package = "views"
//
//	viewmodel "Person" {
//	  schema   = "person.json"
//	  behavior = "person_behavior.go"
//	}
type Project struct {
	// Output directory of generated files.
	Output string `hcl:"output"`
	// Package clause of generated files, unless a view-model overrides it.
	Package string `hcl:"package,optional"`
	// Cache is the path of the SQLite artifact store (optional).
	Cache string `hcl:"cache,optional"`
	// Capacity is the initial encode buffer size of built codecs.
	Capacity int `hcl:"capacity,optional"`
	// Check validates emitted codecs by building them.
	Check bool `hcl:"check,optional"`
	// ViewModels to generate, in file order.
	ViewModels []ViewModel `hcl:"viewmodel,block"`
}

// ViewModel declares one generated view-model.
type ViewModel struct {
	// Name of the root class; the behavior source overrides members of it.
	Name string `hcl:"name,label"`
	// Schema is the path of the schema document.
	Schema string `hcl:"schema"`
	// Behavior is the path of the Go override source (optional).
	Behavior string `hcl:"behavior,optional"`
	// Package overrides the project package.
	Package string `hcl:"package,optional"`
	// Base prefixes the generated file names.
	Base string `hcl:"base,optional"`
}
