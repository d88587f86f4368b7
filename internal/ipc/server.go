package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/daemon"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/logs"
)

// serviceName is the RPC namespace shared by server and client.
const serviceName = "W2E"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via ipc")
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.JobStats = status.Workflow.JobStats
	resp.LastError = status.Workflow.LastError
	resp.LastJobID = status.Workflow.LastJobID
	resp.PhaseHealth = append(resp.PhaseHealth, status.Workflow.PhaseHealth...)
	return nil
}

func (s *service) ProjectAdd(req ProjectAddRequest, resp *ProjectAddResponse) error {
	project, err := s.daemon.Projects().Create(s.ctx, api.CreateProjectRequest{
		Title:          req.Title,
		Transcript:     req.Transcript,
		Outline:        req.Outline,
		ContentMode:    req.ContentMode,
		StrictGrounded: req.StrictGrounded,
	})
	if err != nil {
		return err
	}
	resp.Project = *project
	s.log().Info("project created via ipc", logging.String("project_id", project.ID))
	return nil
}

func (s *service) ProjectList(_ ProjectListRequest, resp *ProjectListResponse) error {
	items, err := s.daemon.Projects().List(s.ctx)
	if err != nil {
		return err
	}
	resp.Projects = items
	return nil
}

func (s *service) ProjectDescribe(req ProjectDescribeRequest, resp *ProjectDescribeResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("project describe requires an id")
	}
	project, err := s.daemon.Projects().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("project %s not found", req.ID)
	}
	resp.Project = *project
	return nil
}

func (s *service) Generate(req GenerateRequest, resp *GenerateResponse) error {
	job, err := s.daemon.Projects().Generate(s.ctx, req.ProjectID)
	if err != nil {
		return err
	}
	resp.Job = *job
	s.log().Info("generation enqueued via ipc",
		logging.String("project_id", req.ProjectID),
		logging.String("job_id", job.ID))
	return nil
}

func (s *service) Rewrite(req RewriteRequest, resp *RewriteResponse) error {
	job, err := s.daemon.Projects().Rewrite(s.ctx, req.ProjectID)
	if err != nil {
		return err
	}
	resp.Job = *job
	s.log().Info("rewrite enqueued via ipc",
		logging.String("project_id", req.ProjectID),
		logging.String("job_id", job.ID))
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	if strings.TrimSpace(req.ProjectID) != "" {
		items, err := s.daemon.Jobs().ListForProject(s.ctx, req.ProjectID)
		if err != nil {
			return err
		}
		resp.Jobs = items
		return nil
	}
	statuses := make([]jobs.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := jobs.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.Jobs().List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = items
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("job describe requires an id")
	}
	job, err := s.daemon.Jobs().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", req.ID)
	}
	resp.Job = *job
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	job, err := s.daemon.Jobs().Cancel(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = *job
	s.log().Info("cancel requested via ipc", logging.String("job_id", req.ID))
	return nil
}

func (s *service) QAReport(req QAReportRequest, resp *QAReportResponse) error {
	project, err := s.daemon.Projects().Describe(s.ctx, req.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("project %s not found", req.ProjectID)
	}
	if len(project.QAReport) == 0 {
		return fmt.Errorf("project %s has no qa report", req.ProjectID)
	}
	resp.Report = project.QAReport
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
