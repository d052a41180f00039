// Package repository provides data persistence implementations for the
// authorization engine: entity rows, hierarchy edges with their closure
// index, and access rules, for PostgreSQL and MySQL.
package repository

import (
	"fmt"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// entityTable returns the entity table for a kind. Kinds are a closed enum
// validated at the API boundary, so the names are safe to splice into SQL.
func entityTable(kind domain.Kind) string {
	switch kind {
	case domain.KindSubject:
		return "subjects"
	case domain.KindObject:
		return "objects"
	case domain.KindPermission:
		return "permissions"
	}
	panic(fmt.Sprintf("unknown entity kind %q", kind))
}

// edgeTable returns the parent/child edge table for a kind.
func edgeTable(kind domain.Kind) string {
	switch kind {
	case domain.KindSubject:
		return "subject_edges"
	case domain.KindObject:
		return "object_edges"
	case domain.KindPermission:
		return "permission_edges"
	}
	panic(fmt.Sprintf("unknown entity kind %q", kind))
}

// closureTable returns the reachability index table for a kind.
func closureTable(kind domain.Kind) string {
	switch kind {
	case domain.KindSubject:
		return "subject_closure"
	case domain.KindObject:
		return "object_closure"
	case domain.KindPermission:
		return "permission_closure"
	}
	panic(fmt.Sprintf("unknown entity kind %q", kind))
}
