// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer reads the nullable columns pgx scans into pointers.
package pointer

// Val dereferences p, returning the zero value of T when p is nil.
//
// A NULL session column therefore reads as "" or the zero [time.Time].
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
