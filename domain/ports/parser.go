package ports

import (
	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/wireformat"
)

// VarsParser turns the raw variable block of an inbound request into name/value pairs.
type VarsParser interface {
	Parse(raw []byte) (wireformat.Table, error)
}

// VarsParserFunc adapts a plain function to VarsParser.
type VarsParserFunc func(raw []byte) (wireformat.Table, error)

// Parse implements VarsParser.
func (f VarsParserFunc) Parse(raw []byte) (wireformat.Table, error) {
	return f(raw)
}

// ConfigParser decodes a configuration document into cfg. Fields the
// document does not mention keep the value cfg already holds.
type ConfigParser interface {
	Parse(data []byte, cfg *entities.Config) error
}
