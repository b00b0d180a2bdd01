package database

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike makes s match literally inside a LIKE/ILIKE pattern that uses
// backslash as its escape character.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

// ContainsPattern is the ILIKE pattern matching any value containing s.
func ContainsPattern(s string) string { return "%" + EscapeLike(s) + "%" }
