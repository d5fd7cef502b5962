package services

import (
	"github.com/blogem/hard-delete-gate/repositories"
)

// Services holds all service instances
type Services struct {
	DeleteRequests DeleteRequestService
}

// NewServices creates and initializes all service instances
func NewServices(repos *repositories.Repositories, policy DeletePolicy) *Services {
	return &Services{
		DeleteRequests: NewDeleteRequestService(repos, policy),
	}
}
