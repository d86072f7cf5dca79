package filter

// Filter answers approximate membership queries for segment keys.
// A false positive costs one segment read; a false negative is never allowed.
type Filter interface {
	Add(key []byte)
	MayContain(key []byte) bool
}
