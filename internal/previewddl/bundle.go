// Package previewddl embeds the precompiled DDL bundle replayed into every
// freshly created preview schema, and the feature-aware seeder that
// populates only the tables a session's selected features actually need.
package previewddl

import _ "embed"

//go:embed sql/bundle.sql
var bundle string

// Bundle returns the immutable DDL blob loaded once at process startup.
func Bundle() string {
	return bundle
}
