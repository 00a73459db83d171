package commands

import "io"

type Globals struct {
	Debug   bool
	Version string
	Out     io.Writer
}
