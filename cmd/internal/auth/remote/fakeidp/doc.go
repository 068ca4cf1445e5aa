// Package fakeidp is an in-memory identity service speaking the same HTTP
// contract as the real one. The CLI serves it as "nuvem dev-idp" and the
// session tests run against it.
//
// One-time codes are logged instead of e-mailed. Nothing is persisted.
package fakeidp
