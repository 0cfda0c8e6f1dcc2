package auth

import "sort"

// ResolvedAccess is the flattened permission view of an actor at a
// point in time.
type ResolvedAccess struct {
	Permissions []string
	AccessLevel int
}

// ResolveAccess flattens role assignments into a deduplicated
// permission-name set and the maximum access level. Only roles where
// both the role and the assignment are active contribute; suspending
// either side removes its permissions from the result. Pure function,
// no I/O.
func ResolveAccess(assignments []Assignment) ResolvedAccess {
	set := make(map[string]struct{})
	level := 0
	for _, a := range assignments {
		if !a.Active || !a.Role.IsActive {
			continue
		}
		if a.Role.AccessLevel > level {
			level = a.Role.AccessLevel
		}
		for _, p := range a.Permissions {
			if p == "" {
				continue
			}
			set[p] = struct{}{}
		}
	}
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return ResolvedAccess{Permissions: perms, AccessLevel: level}
}
