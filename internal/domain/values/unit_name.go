package values

import "strings"

// DocumentRef identifies the document a unit is executed for.
type DocumentRef struct {
	Wiki  string
	Space string
	Name  string
}

// QualifyUnitName returns the fully qualified unit name to load.
// An empty name derives from the document's space and name. A name that is
// not already prefixed by one of the known group ids is placed under the
// first group id and the current wiki.
func QualifyUnitName(name string, doc DocumentRef, groupIDs []string, wiki string) string {
	if name == "" {
		name = doc.Space + "." + doc.Name
	}

	for _, groupID := range groupIDs {
		if strings.HasPrefix(name, groupID) {
			return name
		}
	}

	if len(groupIDs) == 0 {
		return name
	}
	return groupIDs[0] + "." + wiki + "." + name
}

// UnitPath maps a dotted unit name to the relative path of its module file
// inside a package, e.g. "lib.Foo" becomes "lib/Foo.wasm".
func UnitPath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ".wasm"
}
