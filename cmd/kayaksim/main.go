package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/sim"
)

var (
	listenAddr     = ":9600"
	byteOrder      = halfp.LittleEndian
	interval       = 10 * time.Millisecond
	failsafe       = 500 * time.Millisecond
	reportInterval = time.Second
	boat           = sim.Boat{MaxSpeed: 2, MaxTurnRate: 1, Accel: 1}
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Listen address, connect with -device tcp://ADDR.")
	flag.Var(&byteOrder, "byte-order", "Byte order expected on the wire: little or big.")
	flag.DurationVar(&interval, "interval", interval, "Simulation interval.")
	flag.DurationVar(&failsafe, "failsafe", failsafe, "Stop the boat without packets for this long, 0 to disable.")
	flag.DurationVar(&reportInterval, "report", reportInterval, "Pose report interval, 0 to disable.")
	flag.Float64Var(&boat.MaxSpeed, "max-speed", boat.MaxSpeed, "Speed in m/s at full throttle.")
	flag.Float64Var(&boat.MaxTurnRate, "turn-rate", boat.MaxTurnRate, "Turn rate in rad/s at full turn.")
	flag.Float64Var(&boat.Accel, "accel", boat.Accel, "Acceleration in m/s², 0 for immediate.")
}

func serve(ctx context.Context, ln net.Listener) error {
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.Infof("connected %s", conn.RemoteAddr())
			loop := fx.NewLoop()
			loop.Interval = interval
			loop.Add(&sim.Kayak{
				Conn:           conn,
				Receiver:       sim.Receiver{Codec: halfp.Codec{Order: byteOrder}},
				Boat:           &boat,
				Failsafe:       failsafe,
				ReportInterval: reportInterval,
			})
			err = loop.Run(ctx)
			boat.Command(drive.Channels{}, time.Now())
			glog.Infof("disconnected %s: %v, pose %s", conn.RemoteAddr(), err, boat.Pose())
			if ctx.Err() != nil {
				return nil
			}
		}
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		glog.Exitf("listen %s: %v", listenAddr, err)
	}
	glog.Infof("kayak simulator on %s", ln.Addr())
	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.RunFunc(func(ctx context.Context) error {
		return serve(ctx, ln)
	}))
	if err := runner.Wait(); err != nil && err != context.Canceled {
		glog.Exitf("%v", err)
	}
}
