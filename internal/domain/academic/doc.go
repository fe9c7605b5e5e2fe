// Package academic holds the progress reconciliation and semester projection
// rules for a student's curriculum ("malla").
//
// Everything in this package is pure and synchronous: callers fetch attempt
// history and curriculum rows through the ports in source.go and pass them in
// explicitly. Nothing here blocks, retries, or reads ambient state.
//
// # Pipeline
//
//	records ──► ClassifyStatus ──► EvaluateStanding ──► MaxCreditsFor / CanAppendSemester
//	curriculum + records ──► ReconcileProgress ──► Summary
//	curriculum + records + semesters ──► ComputeAvailableCourses
//
// Two status rules coexist on purpose. ClassifyStatus gives a parseable grade
// priority over the status text; availability and standing only look at the
// text markers, matching what the projection screens have always done.
package academic
