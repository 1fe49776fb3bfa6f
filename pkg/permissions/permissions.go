// Package permissions defines the fixed permission lattice used by the
// authorization layer. Each named level maps to four capability bits; the
// mapping is validated once at configuration load, never at request time.
package permissions

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is a named access level with its derived capability bits.
type Permission struct {
	Name      string
	CanRead   bool
	CanUpdate bool
	CanDelete bool
	CanManage bool
}

// The fixed lattice. MANAGE implies every other capability; NO_PERMISSIONS
// implies none. The set is deliberately closed: deployments pick a default
// from these levels, they do not define new ones.
var (
	Read = Permission{
		Name:    "READ",
		CanRead: true,
	}
	Edit = Permission{
		Name:      "EDIT",
		CanRead:   true,
		CanUpdate: true,
	}
	Manage = Permission{
		Name:      "MANAGE",
		CanRead:   true,
		CanUpdate: true,
		CanDelete: true,
		CanManage: true,
	}
	NoPermissions = Permission{
		Name: "NO_PERMISSIONS",
	}
)

var byName = map[string]Permission{
	Read.Name:          Read,
	Edit.Name:          Edit,
	Manage.Name:        Manage,
	NoPermissions.Name: NoPermissions,
}

// Get returns the permission for a level name. Unknown names return an
// error; callers validate configuration and stored grants with this at
// load/write time so lookups on the request path are total.
func Get(name string) (Permission, error) {
	p, ok := byName[name]
	if !ok {
		return Permission{}, fmt.Errorf("invalid permission %q, must be one of %s", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// IsValid reports whether name is a known permission level.
func IsValid(name string) bool {
	_, ok := byName[name]
	return ok
}

// Names returns the known level names in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
