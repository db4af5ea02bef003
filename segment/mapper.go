//go:build unix

package segment

// Mapper opens segments by name on behalf of the server.
type Mapper interface {
	Map(name string) (*Segment, error)
}

// DirMapper maps segment files that live in Dir.
type DirMapper struct {
	Dir string
}

// Map opens and maps Dir/name.
func (m DirMapper) Map(name string) (*Segment, error) {
	return Open(m.Dir, name)
}
