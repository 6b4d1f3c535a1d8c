package worker

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/transport"
)

// Config configures a worker Runner.
type Config struct {
	Name              string
	DispatcherAddr    string
	BindHost          string
	BasePort          int
	PortScanRange     int
	MaxJobs           int
	AllowShell        bool
	WorkDir           string
	HeartbeatInterval time.Duration
}

// Runner is the worker process's top-level coordinator: it binds a listener
// for inbound AssignTask/CancelTask connections, announces itself to the
// dispatcher, executes assigned tasks, and keeps a heartbeat flowing. Each
// AssignTask arrives on its own connection and runs on that connection's
// goroutine, so up to MaxJobs tasks (as tracked by the dispatcher) execute
// concurrently; the worker does not limit this itself. This plays the role
// the teacher's worker.Pool played, with tasks pushed over a socket instead
// of pulled from Redis.
type Runner struct {
	cfg      Config
	state    *State
	executor *Executor
	ln       *transport.Listener
	info     *protocol.WorkerInfo
	wg       sync.WaitGroup
}

// NewRunner binds the worker's listening socket, scanning forward from
// BasePort up to PortScanRange times if the preferred port is taken.
func NewRunner(cfg Config) (*Runner, error) {
	var ln *transport.Listener
	var lastErr error

	scanRange := cfg.PortScanRange
	if scanRange <= 0 {
		scanRange = 1
	}

	for i := 0; i < scanRange; i++ {
		port := cfg.BasePort + i
		addr := fmt.Sprintf("%s:%d", cfg.BindHost, port)
		candidate, err := transport.Listen(addr, "worker")
		if err == nil {
			ln = candidate
			break
		}
		lastErr = err
	}
	if ln == nil {
		return nil, fmt.Errorf("worker: no free port in range starting at %d: %w", cfg.BasePort, lastErr)
	}

	advertiseAddr := advertiseAddress()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)

	info := protocol.NewWorkerInfo(cfg.Name, advertiseAddr, port, cfg.MaxJobs, cfg.AllowShell, runtime.GOOS)

	return &Runner{
		cfg:      cfg,
		state:    NewState(),
		executor: NewExecutor(cfg.WorkDir, cfg.AllowShell),
		ln:       ln,
		info:     info,
	}, nil
}

// Run announces the worker, starts the heartbeat sender, and serves inbound
// assignments until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.WithWorker(r.info.ID)

	announce := protocol.NewWorkerAnnounce(r.info)
	if err := transport.Send(ctx, r.cfg.DispatcherAddr, announce); err != nil {
		return fmt.Errorf("worker: announce to dispatcher: %w", err)
	}
	log.Info().
		Str("address", r.info.Address).
		Uint16("port", r.info.Port).
		Int("max_jobs", r.info.MaxJobs).
		Msg("announced to dispatcher")

	hb := NewHeartbeatSender(r.cfg.DispatcherAddr, r.info.ID, r.cfg.HeartbeatInterval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		hb.Run(ctx)
	}()

	return r.ln.Serve(ctx, transport.HandlerFunc(r.handleMessage))
}

// Stop closes the listening socket, which makes Run's Serve call return, and
// waits for the heartbeat sender. The heartbeat sender exits only once the
// ctx passed to Run is cancelled, so Stop blocks until then.
func (r *Runner) Stop() {
	_ = r.ln.Close()
	r.wg.Wait()
}

func (r *Runner) handleMessage(ctx context.Context, m protocol.Message) error {
	switch m.Kind {
	case protocol.KindAssignTask:
		r.handleAssign(ctx, m.AssignTask)
		return nil
	case protocol.KindCancelTask:
		r.state.Cancel(m.CancelTask.TaskID)
		return nil
	default:
		return fmt.Errorf("worker: unexpected message kind %s", m.Kind)
	}
}

func (r *Runner) handleAssign(ctx context.Context, t *protocol.Task) {
	log := logger.WithTask(t.ID)
	r.state.Assign(t)

	result := r.executor.Execute(ctx, r.info.ID, t)
	r.state.Complete(result)

	completion := protocol.NewTaskCompleted(result)
	sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := transport.Send(sendCtx, r.cfg.DispatcherAddr, completion); err != nil {
		log.Error().Err(err).Msg("failed to report task completion to dispatcher")
	}
}

func advertiseAddress() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
