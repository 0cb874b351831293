// Package api provides the deploycenter REST API.
//
//	@title						Deploycenter API
//	@version					1.0
//	@description				Entitlement and subscription management for public-sector digital services
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package api
