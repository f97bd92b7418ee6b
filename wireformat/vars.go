package wireformat

import (
	"strconv"

	"github.com/reglet-dev/luabridge/domain/errors"
)

// Well-known request variables.
const (
	VarServerProtocol = "SERVER_PROTOCOL"
	VarContentLength  = "CONTENT_LENGTH"
	VarContentType    = "CONTENT_TYPE"
	VarRequestMethod  = "REQUEST_METHOD"
	VarRequestURI     = "REQUEST_URI"
	VarRemoteAddr     = "REMOTE_ADDR"
)

// ParseVars decodes the CGI-style variable block of an inbound request.
// Order and duplicates are preserved; empty names are rejected.
func ParseVars(raw []byte) (Table, error) {
	vars, err := DecodeTable(raw)
	if err != nil {
		return nil, err
	}
	for i, e := range vars {
		if len(e.Key) == 0 {
			return nil, &errors.ProtocolError{Reason: "empty variable name at index " + strconv.Itoa(i)}
		}
	}
	return vars, nil
}

// ContentLength returns the declared CONTENT_LENGTH of vars, or 0 if absent or malformed.
func ContentLength(vars Table) int64 {
	v, ok := vars.Get(VarContentLength)
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
