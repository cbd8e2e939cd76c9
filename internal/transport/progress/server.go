// Package progress streams scan progress to websocket clients on the loopback interface.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"regionscan.dev/internal/scan"
)

const (
	Version = "1"
	Path    = "/v1/progress"

	TypeHello     = "HELLO"
	TypeDimension = "DIMENSION"
	TypeRegion    = "REGION"
	TypeDone      = "DONE"
)

type HelloMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Dims            []string `json:"dims"`
	// Current is the dimension being scanned when the client connects.
	Current string `json:"current,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

type DimensionMsg struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	Dim     string `json:"dim"`
	Phase   string `json:"phase"`
	Total   int    `json:"total,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Chunks  uint64 `json:"chunks,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RegionMsg struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	scan.RegionEvent
	Done  int `json:"done"`
	Total int `json:"total"`
}

type DoneMsg struct {
	Type   string `json:"type"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Server fans scan events out to every connected client. Slow clients lose messages
// rather than stalling the scan.
type Server struct {
	runID string
	dims  []string
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[uint64]chan []byte
	current  string
	done     int
	total    int

	dropped atomic.Uint64
}

func NewServer(runID string, dims []string, logger *log.Logger) *Server {
	return &Server{
		runID:    runID,
		dims:     dims,
		log:      logger,
		sessions: map[uint64]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) broadcastLocked(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, out := range s.sessions {
		select {
		case out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

// StartDimension resets the region counters for a new dimension.
func (s *Server) StartDimension(dim string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.done, s.total = dim, 0, total
	s.broadcastLocked(DimensionMsg{Type: TypeDimension, RunID: s.runID, Dim: dim, Phase: "start", Total: total})
}

func (s *Server) FinishDimension(res scan.DimensionResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := DimensionMsg{
		Type:    TypeDimension,
		RunID:   s.runID,
		Dim:     res.Dimension,
		Phase:   "finish",
		Outcome: res.Outcome.String(),
		Chunks:  res.Frequencies.ChunksCounted,
	}
	if err != nil {
		msg.Outcome = "error"
		msg.Error = err.Error()
	}
	s.broadcastLocked(msg)
}

// Region is safe to call from scan workers.
func (s *Server) Region(ev scan.RegionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	s.broadcastLocked(RegionMsg{Type: TypeRegion, RunID: s.runID, RegionEvent: ev, Done: s.done, Total: s.total})
}

func (s *Server) Finish(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(DoneMsg{Type: TypeDone, RunID: s.runID, Status: status})
}

func (s *Server) join() (uint64, chan []byte, HelloMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID.Add(1)
	out := make(chan []byte, 256)
	s.sessions[id] = out
	hello := HelloMsg{
		Type:            TypeHello,
		ProtocolVersion: Version,
		RunID:           s.runID,
		Dims:            s.dims,
		Current:         s.current,
		Done:            s.done,
		Total:           s.total,
	}
	return id, out, hello
}

func (s *Server) leave(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, hello := s.join()
		defer s.leave(id)

		if err := writeJSON(conn, hello); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Clients only listen; reading keeps control frames flowing and notices disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// ListenAndServe serves the progress endpoint on addr until Shutdown. addr must resolve to
// a loopback address.
func (s *Server) ListenAndServe(addr string) (*http.Server, net.Addr, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, nil, err
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, nil, fmt.Errorf("progress address %s is not loopback", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.WSHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed && s.log != nil {
			s.log.Printf("progress server: %v", err)
		}
	}()
	return srv, ln.Addr(), nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
