// Package logadapter adapts github.com/joeycumines/logiface, backed by
// github.com/joeycumines/izerolog and github.com/rs/zerolog, to the
// [github.com/sunder-dev/rundedupe/dedupe.Logger] interface.
package logadapter
