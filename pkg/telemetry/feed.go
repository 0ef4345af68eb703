package telemetry

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/kayak"
)

// Feed streams DriveStatus as JSON to websocket clients. A client gets
// the last status right after connecting.
type Feed struct {
	ID string

	lock    sync.Mutex
	last    *DriveStatus
	clients map[chan *DriveStatus]struct{}
}

// NewFeed creates a Feed.
func NewFeed(id string) *Feed {
	return &Feed{ID: id, clients: make(map[chan *DriveStatus]struct{})}
}

// ReportStatus implements kayak.StatusReporter. Slow clients miss
// statuses instead of blocking.
func (f *Feed) ReportStatus(s kayak.Status) {
	msg := NewDriveStatus(f.ID, s)
	f.lock.Lock()
	defer f.lock.Unlock()
	f.last = msg
	for ch := range f.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Handler returns the websocket handler.
func (f *Feed) Handler() http.Handler {
	return websocket.Handler(f.serve)
}

// ServeHTTP implements http.Handler.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Handler().ServeHTTP(w, r)
}

func (f *Feed) subscribe() (chan *DriveStatus, func()) {
	ch := make(chan *DriveStatus, 8)
	f.lock.Lock()
	if f.last != nil {
		ch <- f.last
	}
	f.clients[ch] = struct{}{}
	f.lock.Unlock()
	return ch, func() {
		f.lock.Lock()
		delete(f.clients, ch)
		f.lock.Unlock()
	}
}

func (f *Feed) serve(conn *websocket.Conn) {
	defer conn.Close()
	ch, unsubscribe := f.subscribe()
	defer unsubscribe()
	glog.V(1).Infof("status feed client %s", conn.Request().RemoteAddr)

	// the client never sends anything, a read returns when it's gone.
	gone := make(chan struct{})
	go func() {
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		close(gone)
	}()
	for {
		select {
		case msg := <-ch:
			if err := websocket.JSON.Send(conn, msg); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// FeedPath is where the feed is served.
const FeedPath = "/status"

// FeedServer serves a Feed over HTTP.
type FeedServer struct {
	Addr string
	Feed *Feed
}

// AddToLoop implements framework.LoopAdder.
func (s *FeedServer) AddToLoop(l *fx.Loop) {
	l.AddRunnable(s)
}

// Run implements framework.Runnable.
func (s *FeedServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *FeedServer) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(FeedPath, s.Feed)
	server := &http.Server{Handler: mux}
	glog.Infof("status feed at ws://%s%s", ln.Addr(), FeedPath)
	err := fx.RunWithContextCancel(ctx, func() { server.Close() }, func() error {
		return server.Serve(ln)
	})
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
