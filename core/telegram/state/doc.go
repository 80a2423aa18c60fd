// Package state keeps in-progress conversation sessions in process memory.
// Operations for one user are serialised; different users never block each other.
package state
