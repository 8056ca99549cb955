// Package models defines the core domain models for the split-bill backend.
//
// A Bill is the aggregate root: it owns its Members (no independent member
// lifecycle) and is the unit of mutual exclusion for settlement writes. All
// monetary values are integer minor units (Rupiah has no subunit, so one
// minor unit is one Rupiah).
//
// Design principles:
//
//  1. Bill status is never stored independently of member state; it is
//     recomputed from member statuses on every mutation.
//  2. Items and BillComponents are created once at normalization time and
//     are immutable afterwards.
//  3. Models carry no storage concerns beyond struct tags; stores translate
//     to their own schemas.
package models
