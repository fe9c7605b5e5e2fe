// Package student models the authenticated student: a Chilean RUT and the
// careers ("carreras") they are enrolled in, each tied to a curriculum
// catalog.
//
// Credentials are checked by the university; this package only declares the
// Authenticator port and the identifier rules.
package student
