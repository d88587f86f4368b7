package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Stop requests the daemon to shut down background processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call(serviceName+".Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(serviceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProjectAdd creates a project from transcript material.
func (c *Client) ProjectAdd(req ProjectAddRequest) (*ProjectAddResponse, error) {
	var resp ProjectAddResponse
	if err := c.client.Call(serviceName+".ProjectAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProjectList returns all projects.
func (c *Client) ProjectList() (*ProjectListResponse, error) {
	var resp ProjectListResponse
	if err := c.client.Call(serviceName+".ProjectList", ProjectListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProjectDescribe returns a single project with its artifacts.
func (c *Client) ProjectDescribe(id string) (*ProjectDescribeResponse, error) {
	var resp ProjectDescribeResponse
	if err := c.client.Call(serviceName+".ProjectDescribe", ProjectDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Generate enqueues a draft generation job.
func (c *Client) Generate(projectID string) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.client.Call(serviceName+".Generate", GenerateRequest{ProjectID: projectID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rewrite enqueues a targeted rewrite job.
func (c *Client) Rewrite(projectID string) (*RewriteResponse, error) {
	var resp RewriteResponse
	if err := c.client.Call(serviceName+".Rewrite", RewriteRequest{ProjectID: projectID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns jobs optionally filtered by statuses or project.
func (c *Client) JobList(req JobListRequest) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call(serviceName+".JobList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDescribe returns details for a single job.
func (c *Client) JobDescribe(id string) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	if err := c.client.Call(serviceName+".JobDescribe", JobDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel requests cooperative cancellation of a job.
func (c *Client) Cancel(id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call(serviceName+".Cancel", CancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QAReport returns the stored QA report for a project.
func (c *Client) QAReport(projectID string) (*QAReportResponse, error) {
	var resp QAReportResponse
	if err := c.client.Call(serviceName+".QAReport", QAReportRequest{ProjectID: projectID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call(serviceName+".LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
