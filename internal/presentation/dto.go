package presentation

import (
	"github.com/zjrosen/authprx/internal/registry/domain"
)

// ApiDTO represents a stored Api record for presentation.
type ApiDTO struct {
	Name             string   `json:"name"`
	ClientLimit      uint16   `json:"client_limit"`
	ProtectedPaths   []string `json:"protected_paths"`
	UnprotectedPaths []string `json:"unprotected_paths"`
}

// FromDomainApi converts a record and its name to a DTO. Path lists are
// always arrays in the output, never null.
func FromDomainApi(name string, api domain.Api) ApiDTO {
	api = api.Clone()
	return ApiDTO{
		Name:             name,
		ClientLimit:      api.ClientLimit,
		ProtectedPaths:   api.ProtectedPaths,
		UnprotectedPaths: api.UnprotectedPaths,
	}
}

// ToDomain converts the DTO back to a record, dropping the name.
func (d ApiDTO) ToDomain() domain.Api {
	return domain.Api{
		ClientLimit:      d.ClientLimit,
		ProtectedPaths:   d.ProtectedPaths,
		UnprotectedPaths: d.UnprotectedPaths,
	}.Clone()
}
