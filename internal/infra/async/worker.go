package async

import "context"

// Worker is a long running component started by main. Run must call done
// once it has returned; Shutdown releases whatever Run left open.
type Worker interface {
	Run(context.Context, func())
	Shutdown()
}
