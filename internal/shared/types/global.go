package types

// GlobalLike is the execution-global handed to hooks and to the loaded
// bundle's scripts. The orchestrator assumes nothing beyond ordinary
// property read/write semantics; isolation mechanics live behind it.
type GlobalLike interface {
	// Get reads a property; missing properties return nil.
	Get(name string) interface{}

	// Set writes a property.
	Set(name string, value interface{}) error

	// Has reports property presence.
	Has(name string) bool

	// Delete removes a property.
	Delete(name string) error

	// Keys lists the current property names.
	Keys() []string
}
