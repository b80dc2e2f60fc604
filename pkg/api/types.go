package api

import (
	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/runner"
)

// Re-export types from internal packages for public API
type Scenario = config.Scenario
type Step = config.Step
type Action = config.Action
type MockConfig = config.MockConfig
type OutputConfig = config.OutputConfig
type Locator = browser.Locator
type BrowserConfig = browser.Config
type Result = runner.Result
type StepResult = runner.StepResult
type Option = runner.Option
type ErrorKind = errors.Kind

// Locator constructors
var (
	CSS   = browser.CSS
	Text  = browser.Text
	Role  = browser.Role
	Label = browser.Label
)

// Runner options
var (
	WithLogger       = runner.WithLogger
	WithLauncher     = runner.WithLauncher
	WithPollInterval = runner.WithPollInterval
)
