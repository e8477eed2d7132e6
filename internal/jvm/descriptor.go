// Package jvm decodes the owner names and method descriptors carried by
// compiled call instructions into the type spellings used by records.
package jvm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadDescriptor is returned for descriptors that do not follow the
// JVM method or field descriptor grammar.
var ErrBadDescriptor = errors.New("malformed descriptor")

var baseTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
}

// ParseMethodDescriptor splits a descriptor such as "(Ljava/lang/String;[I)V"
// into parameter type names and a return type name, spelled the way a
// class file reader reports them ("java.lang.String", "int[]", "void").
// Nested class separators ('$') are kept.
func ParseMethodDescriptor(desc string) ([]string, string, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	params := []string{}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		name, next, err := parseFieldType(desc, i)
		if err != nil {
			return nil, "", err
		}
		params = append(params, name)
		i = next
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("%w: %q: unterminated parameter list", ErrBadDescriptor, desc)
	}
	i++ // ')'
	if i < len(desc) && desc[i] == 'V' {
		if i+1 != len(desc) {
			return nil, "", fmt.Errorf("%w: %q: trailing data", ErrBadDescriptor, desc)
		}
		return params, "void", nil
	}
	ret, next, err := parseFieldType(desc, i)
	if err != nil {
		return nil, "", err
	}
	if next != len(desc) {
		return nil, "", fmt.Errorf("%w: %q: trailing data", ErrBadDescriptor, desc)
	}
	return params, ret, nil
}

// ParseFieldDescriptor decodes a single field descriptor ("[Ljava/lang/Object;").
func ParseFieldDescriptor(desc string) (string, error) {
	name, next, err := parseFieldType(desc, 0)
	if err != nil {
		return "", err
	}
	if next != len(desc) {
		return "", fmt.Errorf("%w: %q: trailing data", ErrBadDescriptor, desc)
	}
	return name, nil
}

func parseFieldType(desc string, i int) (string, int, error) {
	dims := 0
	for i < len(desc) && desc[i] == '[' {
		dims++
		i++
	}
	if i >= len(desc) {
		return "", i, fmt.Errorf("%w: %q: truncated type", ErrBadDescriptor, desc)
	}

	var name string
	switch c := desc[i]; {
	case c == 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 2 {
			return "", i, fmt.Errorf("%w: %q: bad class reference", ErrBadDescriptor, desc)
		}
		name = ClassName(desc[i+1 : i+end])
		i += end + 1
	default:
		base, ok := baseTypes[c]
		if !ok {
			return "", i, fmt.Errorf("%w: %q: unknown type %q", ErrBadDescriptor, desc, c)
		}
		name = base
		i++
	}
	return name + strings.Repeat("[]", dims), i, nil
}

// ClassName converts an internal name ("java/util/Map$Entry") to the
// dotted binary name ("java.util.Map$Entry").
func ClassName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// OwnerName converts the owner operand of a call instruction to a type
// name. Owners of calls on arrays (e.g. clone) are array descriptors.
func OwnerName(owner string) (string, error) {
	if strings.HasPrefix(owner, "[") {
		return ParseFieldDescriptor(owner)
	}
	if owner == "" {
		return "", fmt.Errorf("%w: empty owner", ErrBadDescriptor)
	}
	return ClassName(owner), nil
}
