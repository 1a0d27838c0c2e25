// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/selharness/internal/config"
	"github.com/xkilldash9x/selharness/pkg/webdriver"
)

// -- Driver Mock --

// MockDriver mocks webdriver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ webdriver.Driver = (*MockDriver)(nil)

func (m *MockDriver) Execute(ctx context.Context, cmd webdriver.Command) (webdriver.Result, error) {
	args := m.Called(ctx, cmd)
	var res webdriver.Result
	if r := args.Get(0); r != nil {
		res = r.(webdriver.Result)
	}
	return res, args.Error(1)
}

func (m *MockDriver) Capabilities() map[string]interface{} {
	args := m.Called()
	caps, _ := args.Get(0).(map[string]interface{})
	return caps
}

func (m *MockDriver) Quit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- Capability Checker Mock --

// MockChecker mocks config.CapabilityChecker.
type MockChecker struct {
	mock.Mock
}

var _ config.CapabilityChecker = (*MockChecker)(nil)

func (m *MockChecker) CheckPlatform(ctx context.Context, os, browser, version string) (string, bool, error) {
	args := m.Called(ctx, os, browser, version)
	return args.String(0), args.Bool(1), args.Error(2)
}
