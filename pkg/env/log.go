package env

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/swuart/pkg/link"
)

func logFrame(_ context.Context, frame *link.Frame) {
	glog.Infof("RX %q errors=%s", frame.Bytes(), frame.Errors)
}
