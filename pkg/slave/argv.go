package slave

import (
	"errors"
	"path"
	"strings"
)

// ConfToken is substituted with the scratch configuration file's path
// wherever it appears as a whitespace-delimited token in the command line.
const ConfToken = ":CONF:"

// ErrNoCommand is returned when the command line has no tokens.
var ErrNoCommand = errors.New("slave: no command given")

// ErrNotAbsolute is returned when the command's path is not absolute.
var ErrNotAbsolute = errors.New("slave: command path must be absolute")

// BuildArgv tokenizes line (whitespace-delimited) into the absolute path to
// exec and the argv to pass it, substituting confPath for every ConfToken.
// argv[0] is the path's basename, matching exec conventions; the returned
// path is always used as the program to execute, never argv[0] itself.
func BuildArgv(line, confPath string) (execPath string, argv []string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ErrNoCommand
	}

	execPath = fields[0]
	if !path.IsAbs(execPath) || path.Base(execPath) == "/" {
		return "", nil, ErrNotAbsolute
	}

	argv = make([]string, len(fields))
	argv[0] = path.Base(execPath)
	for i, f := range fields[1:] {
		if f == ConfToken {
			f = confPath
		}
		argv[i+1] = f
	}
	return execPath, argv, nil
}
