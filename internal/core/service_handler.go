package core

import "github.com/edvin/deploycenter/internal/model"

// Default storage limits provisioned on subscription creation, in bytes.
const (
	defaultDriveUserStorage      = 10 * 1024 * 1024 * 1024
	defaultMailboxStorage        = 5 * 1024 * 1024 * 1024
	defaultOrganizationMailboxes = 50 * 1024 * 1024 * 1024
)

// DefaultEntitlement is a template row provisioned when a subscription to a
// service of the handler's type is created.
type DefaultEntitlement struct {
	Type        string
	AccountType string
	Config      map[string]any
}

// ServiceHandler carries the per-service-type behavior attached to the
// subscription lifecycle. New service types register a handler without
// touching the lifecycle itself.
type ServiceHandler interface {
	DefaultEntitlements(service *model.Service) []DefaultEntitlement
}

// HandlerRegistry maps a service type to its behavior handler. Unregistered
// types get no default entitlements.
type HandlerRegistry struct {
	handlers map[string]ServiceHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	r := &HandlerRegistry{handlers: map[string]ServiceHandler{}}
	r.Register(model.ServiceTypeDrive, driveHandler{})
	r.Register(model.ServiceTypeMessages, messagesHandler{})
	return r
}

func (r *HandlerRegistry) Register(serviceType string, handler ServiceHandler) {
	r.handlers[serviceType] = handler
}

func (r *HandlerRegistry) Handler(serviceType string) (ServiceHandler, bool) {
	h, ok := r.handlers[serviceType]
	return h, ok
}

type driveHandler struct{}

func (driveHandler) DefaultEntitlements(_ *model.Service) []DefaultEntitlement {
	return []DefaultEntitlement{
		{
			Type:        model.EntitlementDriveStorage,
			AccountType: model.AccountTypeUser,
			Config:      map[string]any{"max_storage": int64(defaultDriveUserStorage)},
		},
	}
}

type messagesHandler struct{}

func (messagesHandler) DefaultEntitlements(_ *model.Service) []DefaultEntitlement {
	return []DefaultEntitlement{
		{
			Type:        model.EntitlementMessagesStorage,
			AccountType: model.AccountTypeMailbox,
			Config:      map[string]any{"max_storage": int64(defaultMailboxStorage)},
		},
		{
			Type:        model.EntitlementMessagesStorage,
			AccountType: model.AccountTypeOrganization,
			Config:      map[string]any{"max_storage": int64(defaultOrganizationMailboxes)},
		},
	}
}
