package api

// Document is the on-disk form of a view-model schema.
// It declares the root class and its ordered properties.
type Document struct {
	// Version of the schema format.
	Version string `json:"version,omitempty"`
	// Name of the root view-model class.
	Name string `json:"name"`
	// Properties in declaration (wire) order.
	Properties []Property `json:"properties,omitempty"`
}

// Property declares one named, typed member of a view-model.
type Property struct {
	// Name of the property. Must be a Go identifier starting with a letter.
	Name string `json:"name"`
	// Kind tag: object, array, string, integer, float or boolean.
	Kind string `json:"kind"`
	// Default value for scalar kinds (optional).
	Default any `json:"default,omitempty"`
	// Properties of a nested object, or of each element of an array.
	Properties []Property `json:"properties,omitempty"`
}
