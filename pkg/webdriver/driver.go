// File: pkg/webdriver/driver.go
package webdriver

import (
	"context"
	"errors"
	"fmt"
)

// CommandName identifies a browser automation command.
type CommandName string

const (
	CmdNavigate   CommandName = "navigate"
	CmdClick      CommandName = "click"
	CmdSendKeys   CommandName = "sendKeys"
	CmdText       CommandName = "text"
	CmdAttribute  CommandName = "attribute"
	CmdTitle      CommandName = "title"
	CmdScript     CommandName = "script"
	CmdPresent    CommandName = "present"
	CmdCurrentURL CommandName = "currentURL"
	CmdPageSource CommandName = "pageSource"
	CmdScreenshot CommandName = "screenshot"
)

// Command is one automation request. Which fields are read depends on Name:
// Selector for element commands, Value for navigate, sendKeys, attribute and
// script, Args for script arguments.
type Command struct {
	Name     CommandName
	Selector string
	Value    string
	Args     []interface{}
}

func (c Command) String() string {
	if c.Selector != "" {
		return fmt.Sprintf("%s(%s)", c.Name, c.Selector)
	}
	return string(c.Name)
}

// Result carries a command's output. Text holds string results, Bytes binary
// ones (screenshots), Bool the outcome of present, Value script results.
type Result struct {
	Text  string
	Bytes []byte
	Bool  bool
	Value interface{}
}

// ErrUnsupportedCommand is returned by drivers for commands they do not implement.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Driver is a live browser automation session. Implementations report
// failures reported by the browser or automation endpoint as *RemoteError.
type Driver interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
	// Capabilities returns what the endpoint says it actually provides.
	Capabilities() map[string]interface{}
	Quit(ctx context.Context) error
}

// Exempt reports whether commands with this name bypass failure capture.
// These are the commands capture itself issues.
func Exempt(name CommandName) bool {
	switch name {
	case CmdScreenshot, CmdPageSource, CmdCurrentURL:
		return true
	}
	return false
}
