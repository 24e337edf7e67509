// Package scriptfilter lets a query.RecordFilter be expressed as a small
// JavaScript boolean expression over a record's fields instead of a Go
// closure, for callers that want to store or transmit the predicate as
// text (a saved view, a config file) rather than compiled Go code. Built
// on the teacher's own embedded-JS dependency (see
// _examples/rediwo-redi-orm/engine/engine.go, which likewise drives a
// goja.Runtime from a script string and exposes host values into it), but
// compiled once into a reusable predicate rather than re-parsed per call.
package scriptfilter

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/query"
	"github.com/latticedb/lattice/storeapi"
)

// Predicate is a compiled JS boolean expression, safe for concurrent use:
// each call gets its own goja.Runtime, mirroring engine.New's
// one-runtime-per-evaluation shape since goja.Runtime is not itself
// goroutine-safe.
type Predicate struct {
	program *goja.Program
	src     string
}

// Compile parses expr (a JS expression such as `age >= 18 &&
// name.startsWith("A")`) once. The returned Predicate can be reused across
// any number of Collection.Filter calls.
func Compile(expr string) (*Predicate, error) {
	program, err := goja.Compile("filter", "("+expr+")", true)
	if err != nil {
		return nil, lerr.Wrap(lerr.KindData, "scriptfilter: invalid expression", err)
	}
	return &Predicate{program: program, src: expr}, nil
}

// Eval runs the predicate against rec, coercing the script result to a Go
// bool via goja's own truthiness rules.
func (p *Predicate) Eval(rec storeapi.Record) (bool, error) {
	vm := goja.New()
	for field, v := range rec {
		vm.Set(field, v)
	}
	val, err := vm.RunProgram(p.program)
	if err != nil {
		return false, lerr.Wrap(lerr.KindData, fmt.Sprintf("scriptfilter: evaluating %q", p.src), err)
	}
	return val.ToBoolean(), nil
}

// AsRecordFilter adapts the predicate into a query.RecordFilter, ignoring
// the primary key argument; a script predicate only ever sees field
// values, the same boundary Collection.Filter's Go-closure form already
// has access to.
func (p *Predicate) AsRecordFilter() query.RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		ok, err := p.Eval(rec)
		return err == nil && ok
	}
}
