// dpoint-dump listens like telemetry collector and prints every received frame.
package main

import (
	"encoding/binary"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/graspkit/touchfwd/helpers"
	"github.com/graspkit/touchfwd/internal/tele"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	listen := cmdline.String("listen", ":4620", "TCP listen address")
	byteOrder := cmdline.String("byte-order", "little", "little|big")
	debug := cmdline.Bool("debug", false, "debug logging")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)
	if *debug {
		log.SetLevel(log2.LDebug)
	}
	order, err := tele.ParseByteOrder(*byteOrder)
	if err != nil {
		log.Fatal(err)
	}
	ln, err := net.Listen("tcp4", *listen)
	if err != nil {
		log.Fatal(errors.Annotatef(err, "listen=%s", *listen))
	}
	log.Infof("listening on %s", ln.Addr())

	a := alive.NewAlive()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigch
		a.Stop()
		_ = ln.Close()
	}()

	d := &dumper{order: order, out: os.Stdout, log: log}
	d.serve(a, ln)
	a.Wait()
	log.Infof("total frames=%d bytes=%d", d.frames.Value(), d.bytes.Value())
}

type dumper struct {
	order  binary.ByteOrder
	out    io.Writer
	outLk  sync.Mutex
	log    *log2.Log
	frames expvar.Int
	bytes  expvar.Int
}

func (d *dumper) serve(a *alive.Alive, ln net.Listener) {
	for a.IsRunning() {
		conn, err := ln.Accept()
		if err != nil {
			if a.IsRunning() {
				d.log.Errorf("accept err=%v", err)
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		if !a.Add(1) {
			_ = conn.Close()
			return
		}
		go func() {
			defer a.Done()
			done := make(chan struct{})
			defer close(done)
			helpers.OnStop(a, done, func() { _ = conn.Close() })
			err := d.handle(conn)
			d.log.Infof("client=%s closed err=%v", conn.RemoteAddr(), err)
		}()
	}
}

// handle reads frames until EOF. Invalid frame is reported and skipped.
func (d *dumper) handle(conn io.ReadCloser) error {
	defer conn.Close()
	r := helpers.NewStatReader(conn, &d.bytes, 0)
	buf := make([]byte, tele.FrameSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		d.frames.Add(1)
		rec, err := tele.UnmarshalFrame(d.order, buf)
		if err != nil {
			d.log.Errorf("frame=%x err=%v", buf, err)
			continue
		}
		d.outLk.Lock()
		fmt.Fprintln(d.out, formatRecord(d.order, rec))
		d.outLk.Unlock()
	}
}

func formatRecord(order binary.ByteOrder, r *tele.Record) string {
	var b strings.Builder
	ts := time.Unix(0, int64(r.Timestamp)*int64(time.Microsecond)).UTC()
	fmt.Fprintf(&b, "%s %s %s", ts.Format("15:04:05.000000"), r.Name, r.Type)
	switch r.Type {
	case tele.TypeShort:
		if vs, err := tele.ParseShorts(order, r.Payload); err == nil {
			fmt.Fprintf(&b, " %v", vs)
			return b.String()
		}
	case tele.TypeString:
		fmt.Fprintf(&b, " %q", r.Payload)
		return b.String()
	}
	fmt.Fprintf(&b, " %x", r.Payload)
	return b.String()
}
