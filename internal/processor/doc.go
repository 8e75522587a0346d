// Package processor holds the per-message-type business rules and the
// template driver that runs them.
//
// Every processor goes through Run: validate, then process. A failed
// validation never reaches business logic, and a panic inside either stage
// becomes an ERROR result instead of taking the connection worker down.
package processor
