package testutil

import "github.com/zjrosen/authprx/internal/registry/domain"

// ApiOption adjusts an Api before the builder stores it.
type ApiOption func(*domain.Api)

// ClientLimit sets the client limit.
func ClientLimit(n uint16) ApiOption {
	return func(a *domain.Api) { a.ClientLimit = n }
}

// Protected appends protected path prefixes.
func Protected(paths ...string) ApiOption {
	return func(a *domain.Api) { a.ProtectedPaths = append(a.ProtectedPaths, paths...) }
}

// Unprotected appends unprotected path prefixes.
func Unprotected(paths ...string) ApiOption {
	return func(a *domain.Api) { a.UnprotectedPaths = append(a.UnprotectedPaths, paths...) }
}

// recordData is one pending insert. raw, when set, is stored verbatim
// instead of the encoded api.
type recordData struct {
	name string
	api  domain.Api
	raw  []byte
}
