// Package anno defines the naming scheme for annotations and class-alias
// references used throughout the pipeline.
//
// A concrete annotation name has the form "elem.attr" (e.g. "token.pos"),
// where elem is the span element the annotation belongs to and attr is the
// attribute name. A bare "elem" names the span segmentation itself.
//
// Entries in config lists and rule declarations may instead reference an
// abstract class:
//
//	<token>          the annotation the "token" class resolves to
//	<token>:pos.tag  the "pos.tag" annotation, aligned with the token class
//
// Class references are resolved exactly once, during config merge; the core
// graph only ever sees concrete names.
package anno

import (
	"fmt"
	"strings"
)

// SpanAttr is the attribute name under which a bare span annotation is
// stored on disk.
const SpanAttr = "@span"

// Split returns the element and attribute parts of a concrete annotation
// name. The attribute is empty for a bare span annotation. The attribute
// part may itself contain dots; only the first dot separates.
func Split(name string) (elem, attr string) {
	elem, attr, _ = strings.Cut(name, ".")
	return elem, attr
}

// Elem returns the element part of a concrete annotation name.
func Elem(name string) string {
	elem, _ := Split(name)
	return elem
}

// IsClassRef reports whether the entry references a class alias, either
// bare ("<token>") or with an attached annotation ("<token>:pos.tag").
func IsClassRef(entry string) bool {
	return strings.HasPrefix(entry, "<")
}

// ParseClassRef splits a class reference into its class name and the
// optionally attached annotation name. For "<token>" it returns
// ("token", ""); for "<token>:pos.tag" it returns ("token", "pos.tag").
func ParseClassRef(entry string) (class, attached string, err error) {
	rest := strings.TrimPrefix(entry, "<")
	if rest == entry {
		return "", "", fmt.Errorf("not a class reference: %q", entry)
	}
	class, attached, found := strings.Cut(rest, ">")
	if !found || class == "" {
		return "", "", fmt.Errorf("malformed class reference: %q", entry)
	}
	if attached != "" {
		if !strings.HasPrefix(attached, ":") {
			return "", "", fmt.Errorf("malformed class reference: %q", entry)
		}
		attached = strings.TrimPrefix(attached, ":")
		if attached == "" {
			return "", "", fmt.Errorf("class reference %q has an empty annotation part", entry)
		}
	}
	return class, attached, nil
}

// StorePath returns the relative artifact path for a concrete annotation
// name, following the elem/attr layout of the annotation store.
func StorePath(name string) string {
	elem, attr := Split(name)
	if attr == "" {
		attr = SpanAttr
	}
	return elem + "/" + attr
}
