// Package facts provides the fact context that rules reason about.
//
// A Context is a mutable tree of typed values addressed by dotted attribute
// paths such as "user.address.city". Values are one of six kinds: string,
// 64-bit integer, double, boolean, list, or nested object.
//
// # Absence
//
// Resolving a path never fails. A path that walks through a missing key or
// through a non-object value resolves to the absent value (see Absent and
// Value.IsAbsent), so conditions can test for absence without special error
// handling:
//
//	ctx := facts.New()
//	_ = ctx.Set("user.age", facts.Int(20))
//
//	ctx.Get("user.age")        // Int(20)
//	ctx.Get("user.name")       // absent
//	ctx.Get("user.age.years")  // absent (age is not an object)
//
// # Ownership
//
// A Context is owned by a single evaluation run and is not safe for
// concurrent mutation. Use Clone to hand an independent copy to another
// goroutine.
package facts
