// Package deploy pushes compiled workflow definitions to the Google Cloud
// Workflows API, or to a local emulator speaking the same gRPC surface.
package deploy

import (
	"context"
	"fmt"
	"regexp"

	workflows "cloud.google.com/go/workflows/apiv1"
	"cloud.google.com/go/workflows/apiv1/workflowspb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

// Config selects the deployment target. Endpoint is empty for the real API;
// set it to deploy to a local emulator without credentials.
type Config struct {
	Project  string
	Location string
	Endpoint string
}

var validWorkflowID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateWorkflowID reports whether an ID is acceptable to the Workflows API.
func ValidateWorkflowID(id string) error {
	if !validWorkflowID.MatchString(id) || len(id) > 128 {
		return fmt.Errorf("invalid workflow ID %q: must match %s and be at most 128 characters", id, validWorkflowID)
	}
	return nil
}

// Deployer creates or updates workflows through one shared client.
type Deployer struct {
	client *workflows.Client
	cfg    Config
}

// New connects a deployer to the configured endpoint.
func New(ctx context.Context, cfg Config) (*Deployer, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.Endpoint),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := workflows.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to workflows API: %w", err)
	}
	return &Deployer{client: client, cfg: cfg}, nil
}

// Close releases the underlying client connection.
func (d *Deployer) Close() error {
	return d.client.Close()
}

func (d *Deployer) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", d.cfg.Project, d.cfg.Location)
}

func (d *Deployer) workflowName(id string) string {
	return fmt.Sprintf("%s/workflows/%s", d.parent(), id)
}

// Deploy creates the workflow when it does not exist yet and updates its
// source otherwise. It blocks until the operation completes.
func (d *Deployer) Deploy(ctx context.Context, id string, source []byte) (*workflowspb.Workflow, error) {
	if err := ValidateWorkflowID(id); err != nil {
		return nil, err
	}

	name := d.workflowName(id)
	_, err := d.client.GetWorkflow(ctx, &workflowspb.GetWorkflowRequest{Name: name})
	switch {
	case err == nil:
		return d.update(ctx, name, source)
	case status.Code(err) == codes.NotFound:
		return d.create(ctx, id, name, source)
	default:
		return nil, fmt.Errorf("checking workflow %q: %w", name, err)
	}
}

func (d *Deployer) create(ctx context.Context, id, name string, source []byte) (*workflowspb.Workflow, error) {
	op, err := d.client.CreateWorkflow(ctx, &workflowspb.CreateWorkflowRequest{
		Parent:     d.parent(),
		WorkflowId: id,
		Workflow: &workflowspb.Workflow{
			Name:       name,
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: string(source)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating workflow %q: %w", name, err)
	}

	wf, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for create of %q: %w", name, err)
	}
	return wf, nil
}

func (d *Deployer) update(ctx context.Context, name string, source []byte) (*workflowspb.Workflow, error) {
	op, err := d.client.UpdateWorkflow(ctx, &workflowspb.UpdateWorkflowRequest{
		Workflow: &workflowspb.Workflow{
			Name:       name,
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: string(source)},
		},
		UpdateMask: &fieldmaskpb.FieldMask{Paths: []string{"source_contents"}},
	})
	if err != nil {
		return nil, fmt.Errorf("updating workflow %q: %w", name, err)
	}

	wf, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for update of %q: %w", name, err)
	}
	return wf, nil
}
