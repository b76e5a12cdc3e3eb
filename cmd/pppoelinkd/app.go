// The pppoelinkd command is a standalone PPPoE link-layer daemon: it
// terminates PPPoE discovery and session establishment on one or more
// Ethernet interfaces and hands each established link off to an
// upper-layer multi-link PPP bundle via the host.Host interface.
//
// pppoelinkd is configured using a TOML file; see daemonconfig for
// the schema.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"

	"github.com/katalix/go-pppoe-link/daemonconfig"
	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/host"
	"github.com/katalix/go-pppoe-link/link"
	"github.com/katalix/go-pppoe-link/pppoe"
)

type ctrlEvent struct {
	parent *link.ParentIf
	msg    graph.Message
}

type dataEvent struct {
	parent *link.ParentIf
	raw    []byte
}

type application struct {
	wg     sync.WaitGroup
	logger log.Logger
	pid    int

	hostReg *host.Registry
	parents *link.ParentIfRegistry
	table   *link.SessionTable
	disp    *link.IncomingDispatcher

	demuxes map[string]*link.CtrlDemux
	pumped  map[string]bool

	sigChan   chan os.Signal
	ctrlChan  chan ctrlEvent
	dataChan  chan dataEvent
	closeChan chan struct{}
}

func newApplication(logger log.Logger, cfg *daemonconfig.Config, dialer graph.Dialer) (*application, error) {
	if dialer == nil {
		dialer = graph.RawDialer{}
	}
	app := &application{
		logger:    logger,
		pid:       os.Getpid(),
		hostReg:   host.NewRegistry(),
		parents:   link.NewParentIfRegistry(logger, dialer, link.MaxParents),
		table:     link.NewSessionTable(),
		demuxes:   make(map[string]*link.CtrlDemux),
		pumped:    make(map[string]bool),
		sigChan:   make(chan os.Signal, 1),
		ctrlChan:  make(chan ctrlEvent, 32),
		dataChan:  make(chan dataEvent, 32),
		closeChan: make(chan struct{}),
	}
	app.disp = link.NewIncomingDispatcher(logger, app.pid, app.hostReg, app.table, nil)

	signal.Notify(app.sigChan, unix.SIGINT, unix.SIGTERM)

	for _, lc := range cfg.Links {
		if err := app.addLink(lc); err != nil {
			return nil, fmt.Errorf("link %v: %w", lc.Name, err)
		}
	}
	return app, nil
}

// addLink registers one configured link: a host entry, a LinkSession
// driven to its startup state via a ConfigSurface, and (once a parent
// is acquired) a pump goroutine fanning that parent's channel into the
// shared event loop.
func (app *application) addLink(lc daemonconfig.LinkConfig) error {
	template := lc.Incoming && !lc.Static

	var opts host.Option
	if lc.Incoming {
		opts |= host.OptionIncoming
	}

	app.hostReg.Add(host.LinkEntry{
		ID:             lc.Name,
		Options:        opts,
		Template:       template,
		StaticInstance: lc.Static,
	})

	sess := link.NewLinkSession(app.logger, lc.Name, app.hostReg, app.parents, link.Config{
		Incoming: lc.Incoming,
		Static:   lc.Static,
		Template: template,
	})

	cs := link.NewConfigSurface(sess)
	if err := daemonconfig.Apply(cs, lc); err != nil {
		return err
	}
	app.table.Add(sess)

	if !lc.Incoming {
		if err := sess.Open(app.pid); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}

	if p := sess.Parent(); p != nil {
		app.ensurePump(p)
	}
	return nil
}

// ensurePump starts the fan-in goroutine and control demultiplexer for
// p the first time any link acquires it; later links sharing the same
// parent reuse both.
func (app *application) ensurePump(p *link.ParentIf) {
	if app.pumped[p.NodePath] {
		return
	}
	app.pumped[p.NodePath] = true
	app.demuxes[p.NodePath] = link.NewCtrlDemux(app.logger, app.pid, p, app.table)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ch := p.Channel()
		for {
			select {
			case msg, ok := <-ch.Control():
				if !ok {
					return
				}
				app.ctrlChan <- ctrlEvent{parent: p, msg: msg}
			case frame, ok := <-ch.Data():
				if !ok {
					return
				}
				app.dataChan <- dataEvent{parent: p, raw: frame.Bytes}
			}
		}
	}()
}

func requestedService(raw []byte) string {
	frame, err := pppoe.ParseFrame(raw)
	if err != nil {
		return ""
	}
	if name, ok := frame.ServiceName(); ok {
		return name
	}
	return ""
}

func (app *application) run() int {
	var shutdown bool
	for {
		select {
		case <-app.sigChan:
			if shutdown {
				level.Info(app.logger).Log("message", "pending graceful shutdown")
				continue
			}
			shutdown = true
			level.Info(app.logger).Log("message", "received signal, shutting down")
			go func() {
				for _, sess := range app.table.All() {
					sess.Shutdown()
				}
				app.wg.Wait()
				level.Info(app.logger).Log("message", "graceful shutdown complete")
				close(app.closeChan)
			}()

		case ev := <-app.ctrlChan:
			if demux, ok := app.demuxes[ev.parent.NodePath]; ok {
				demux.Handle(ev.msg)
			}

		case ev := <-app.dataChan:
			app.disp.HandleFrame(ev.parent, requestedService(ev.raw), ev.raw)

		case <-app.closeChan:
			return 0
		}
	}
}
