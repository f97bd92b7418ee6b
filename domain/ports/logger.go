package ports

import "github.com/reglet-dev/luabridge/domain/entities"

// ScriptLogger receives preformatted log lines emitted by scripts.
type ScriptLogger interface {
	LogLine(line string)
}

// AccessLogger writes one access log entry per completed request.
type AccessLogger interface {
	LogRequest(rec entities.AccessRecord)
}
