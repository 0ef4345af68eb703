package kayak

import (
	"context"
	"errors"
	"io"

	"github.com/golang/glog"

	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/link"
)

// Drive runs loop until ctx is done or the link fails, then closes t.
// Cancellation and the kayak hanging up are clean exits.
func Drive(ctx context.Context, loop *fx.Loop, t link.Transport) error {
	err := loop.Run(ctx)
	if cerr := t.Close(); cerr != nil && cerr != link.ErrClosed {
		glog.Errorf("close: %v", cerr)
	}
	switch {
	case err == context.Canceled || err == context.DeadlineExceeded:
		return nil
	case IsTransportError(err) && errors.Is(err, io.EOF):
		glog.Info("link closed by peer")
		return nil
	}
	return err
}
