package manifest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Separator delimits the fields of a record line.
const Separator = "|"

var (
	// ErrUnencodableName is returned for names that contain a line break.
	ErrUnencodableName = errors.New("name cannot be stored in a line-oriented manifest")

	// ErrMalformedRecord is returned when a line cannot be parsed.
	ErrMalformedRecord = errors.New("malformed manifest record")
)

// EncodeIdentity renders an identity as "name|size|hash" without a
// trailing newline.
func EncodeIdentity(id types.Identity) (string, error) {
	if err := checkIdentity(id); err != nil {
		return "", err
	}
	return id.Name + Separator + strconv.FormatUint(id.Size, 10) + Separator + id.Hash, nil
}

// EncodeReduction renders a record as "name|size|hash|bytesSaved" without
// a trailing newline.
func EncodeReduction(rec types.ReductionRecord) (string, error) {
	line, err := EncodeIdentity(rec.Identity)
	if err != nil {
		return "", err
	}
	return line + Separator + strconv.FormatUint(rec.BytesSaved, 10), nil
}

// DecodeIdentity parses a "name|size|hash" line.
//
// Fields are taken from the right: size and hash never contain the
// separator, so everything before them is the name. A name containing "|"
// therefore decodes to exactly what was written.
func DecodeIdentity(line string) (types.Identity, error) {
	fields, err := splitRight(line, 3)
	if err != nil {
		return types.Identity{}, err
	}
	return parseIdentity(line, fields[0], fields[1], fields[2])
}

// DecodeReduction parses a "name|size|hash|bytesSaved" line.
func DecodeReduction(line string) (types.ReductionRecord, error) {
	fields, err := splitRight(line, 4)
	if err != nil {
		return types.ReductionRecord{}, err
	}

	id, err := parseIdentity(line, fields[0], fields[1], fields[2])
	if err != nil {
		return types.ReductionRecord{}, err
	}

	saved, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return types.ReductionRecord{}, fmt.Errorf("%w: bad saved bytes in %q", ErrMalformedRecord, line)
	}

	return types.ReductionRecord{Identity: id, BytesSaved: saved}, nil
}

func checkIdentity(id types.Identity) error {
	if id.Name == "" {
		return fmt.Errorf("%w: empty name", ErrMalformedRecord)
	}
	if strings.ContainsAny(id.Name, "\n\r") {
		return fmt.Errorf("%w: %q", ErrUnencodableName, id.Name)
	}
	if id.Hash == "" || strings.ContainsAny(id.Hash, Separator+"\n\r") {
		return fmt.Errorf("%w: invalid hash %q", ErrMalformedRecord, id.Hash)
	}
	return nil
}

func parseIdentity(line, name, size, hash string) (types.Identity, error) {
	n, err := strconv.ParseUint(size, 10, 64)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: bad size in %q", ErrMalformedRecord, line)
	}
	id := types.Identity{Name: name, Size: n, Hash: hash}
	if err := checkIdentity(id); err != nil {
		return types.Identity{}, err
	}
	return id, nil
}

// splitRight splits line into n fields, where the first field absorbs any
// extra separators.
func splitRight(line string, n int) ([]string, error) {
	fields := make([]string, n)
	rest := line
	for i := n - 1; i > 0; i-- {
		idx := strings.LastIndex(rest, Separator)
		if idx < 0 {
			return nil, fmt.Errorf("%w: expected %d fields in %q", ErrMalformedRecord, n, line)
		}
		fields[i] = rest[idx+len(Separator):]
		rest = rest[:idx]
	}
	fields[0] = rest
	return fields, nil
}
