package shape

// Shape is the form results are materialized in.
type Shape string

// Result shape constants.
const (
	// Object hydrates entities from the backing store.
	Object Shape = "object"
	// Tuple projects the requested attributes positionally.
	Tuple Shape = "tuple"
	Dict  Shape = "dict"
)

// IsValid checks if the shape is one of the supported values.
func (s Shape) IsValid() bool {
	return s == Object || s == Tuple || s == Dict
}
