package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploycenter/internal/entitlement"
	"github.com/edvin/deploycenter/internal/model"
)

type mockServiceStore struct {
	mock.Mock
}

func (m *mockServiceStore) GetByID(ctx context.Context, id int64) (*model.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, service *model.Service, accountType, accountIDOrEmail, identifier string) (*entitlement.Response, error) {
	args := m.Called(ctx, service, accountType, accountIDOrEmail, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Response), args.Error(1)
}
