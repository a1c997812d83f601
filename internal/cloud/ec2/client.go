// Package ec2 implements the control plane against AWS EC2.
package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsec2 "github.com/aws/aws-sdk-go/service/ec2"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/logger"
)

// Client implements cloud.ControlPlane on the EC2 API.
type Client struct {
	api    *awsec2.EC2
	sess   *session.Session
	region string
	log    logger.Logger
}

// New creates an EC2-backed control plane for the given region.
// Credentials come from the standard AWS chain (env, shared config, IMDS).
func New(region string, log logger.Logger) (*Client, error) {
	if region == "" {
		return nil, errors.New(errors.ErrConfig,
			"No AWS region configured",
			"Set 'region' in the config file or pass --region")
	}
	if log == nil {
		log = logger.Noop()
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create an AWS session",
			"Check your AWS config files under ~/.aws")
	}

	return &Client{
		api:    awsec2.New(sess),
		sess:   sess,
		region: region,
		log:    log,
	}, nil
}

// Region returns the region this client talks to.
func (c *Client) Region() string {
	return c.region
}

// Session exposes the underlying AWS session for sibling services (pricing).
func (c *Client) Session() *session.Session {
	return c.sess
}

// DescribeInstance fetches a single point-in-time snapshot.
func (c *Client) DescribeInstance(ctx context.Context, id string) (cloud.Instance, error) {
	raw, err := c.describeRaw(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}
	return c.toSnapshot(raw)
}

// DescribeInstanceDetails fetches the extended metadata for the details view.
func (c *Client) DescribeInstanceDetails(ctx context.Context, id string) (cloud.InstanceDetails, error) {
	raw, err := c.describeRaw(ctx, id)
	if err != nil {
		return cloud.InstanceDetails{}, err
	}
	snap, err := c.toSnapshot(raw)
	if err != nil {
		return cloud.InstanceDetails{}, err
	}

	details := cloud.InstanceDetails{Instance: snap}
	if raw.CpuOptions != nil && raw.CpuOptions.CoreCount != nil {
		details.CPUCores = int(*raw.CpuOptions.CoreCount)
	}
	if snap.ImageID != "" {
		// Image metadata is best effort; a deregistered AMI shouldn't sink
		// the whole details view.
		img, err := c.describeImage(ctx, snap.ImageID)
		if err != nil {
			c.log.Warn("couldn't resolve image %s: %v", snap.ImageID, err)
		} else {
			details.ImageName = img.Name
		}
	}
	return details, nil
}

// ListInstances fetches snapshots of every instance in the region.
func (c *Client) ListInstances(ctx context.Context) ([]cloud.Instance, error) {
	result, err := c.api.DescribeInstancesWithContext(ctx, &awsec2.DescribeInstancesInput{})
	if err != nil {
		return nil, classify(err, "Couldn't list instances")
	}

	var out []cloud.Instance
	for _, reservation := range result.Reservations {
		for _, raw := range reservation.Instances {
			snap, err := c.toSnapshot(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, snap)
		}
	}
	return out, nil
}

// StartInstance issues an asynchronous start request.
func (c *Client) StartInstance(ctx context.Context, id string) error {
	c.log.Debug("starting %s", id)
	_, err := c.api.StartInstancesWithContext(ctx, &awsec2.StartInstancesInput{
		InstanceIds: []*string{aws.String(id)},
	})
	if err != nil {
		return classify(err, fmt.Sprintf("Couldn't start %s", id))
	}
	return nil
}

// StopInstance issues an asynchronous stop request.
func (c *Client) StopInstance(ctx context.Context, id string) error {
	c.log.Debug("stopping %s", id)
	_, err := c.api.StopInstancesWithContext(ctx, &awsec2.StopInstancesInput{
		InstanceIds: []*string{aws.String(id)},
	})
	if err != nil {
		return classify(err, fmt.Sprintf("Couldn't stop %s", id))
	}
	return nil
}

// ModifyInstanceType changes the machine type of a stopped instance.
func (c *Client) ModifyInstanceType(ctx context.Context, id, instanceType string) error {
	c.log.Debug("changing %s to type %s", id, instanceType)
	_, err := c.api.ModifyInstanceAttributeWithContext(ctx, &awsec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(id),
		InstanceType: &awsec2.AttributeValue{
			Value: aws.String(instanceType),
		},
	})
	if err != nil {
		return classify(err, fmt.Sprintf("Couldn't change the type of %s", id))
	}
	return nil
}

// SetInstanceName creates or replaces the Name tag.
func (c *Client) SetInstanceName(ctx context.Context, id, name string) error {
	c.log.Debug("renaming %s to %q", id, name)
	_, err := c.api.CreateTagsWithContext(ctx, &awsec2.CreateTagsInput{
		Resources: []*string{aws.String(id)},
		Tags: []*awsec2.Tag{
			{Key: aws.String("Name"), Value: aws.String(name)},
		},
	})
	if err != nil {
		return classify(err, fmt.Sprintf("Couldn't rename %s", id))
	}
	return nil
}

// ListRegions enumerates the regions available to the caller.
func (c *Client) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	result, err := c.api.DescribeRegionsWithContext(ctx, &awsec2.DescribeRegionsInput{})
	if err != nil {
		return nil, classify(err, "Couldn't list regions")
	}

	var regions []cloud.Region
	for _, r := range result.Regions {
		code := aws.StringValue(r.RegionName)
		regions = append(regions, cloud.Region{
			Code:     code,
			Location: cloud.LocationName(code),
		})
	}
	return regions, nil
}

// describeRaw fetches the raw provider record for one instance id.
func (c *Client) describeRaw(ctx context.Context, id string) (*awsec2.Instance, error) {
	result, err := c.api.DescribeInstancesWithContext(ctx, &awsec2.DescribeInstancesInput{
		InstanceIds: []*string{aws.String(id)},
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("Couldn't fetch %s", id))
	}
	if len(result.Reservations) == 0 || len(result.Reservations[0].Instances) == 0 {
		return nil, errors.New(errors.ErrNotFound,
			fmt.Sprintf("No instance with id %s", id),
			"Check the id with: lobot list")
	}
	return result.Reservations[0].Instances[0], nil
}

func (c *Client) describeImage(ctx context.Context, imageID string) (cloud.Image, error) {
	result, err := c.api.DescribeImagesWithContext(ctx, &awsec2.DescribeImagesInput{
		ImageIds: []*string{aws.String(imageID)},
	})
	if err != nil {
		return cloud.Image{}, classify(err, fmt.Sprintf("Couldn't fetch image %s", imageID))
	}
	if len(result.Images) == 0 {
		return cloud.Image{}, errors.New(errors.ErrNotFound,
			fmt.Sprintf("No image with id %s", imageID), "")
	}
	return cloud.Image{
		ID:   imageID,
		Name: aws.StringValue(result.Images[0].Name),
	}, nil
}

// toSnapshot normalizes a raw provider record into a snapshot, parsing the
// lifecycle state at the boundary.
func (c *Client) toSnapshot(raw *awsec2.Instance) (cloud.Instance, error) {
	rawState := ""
	if raw.State != nil {
		rawState = aws.StringValue(raw.State.Name)
	}
	state, err := cloud.ParseState(rawState)
	if err != nil {
		return cloud.Instance{}, errors.WrapWithCode(err, errors.ErrProvider,
			fmt.Sprintf("Provider reported a state this tool doesn't know for %s",
				aws.StringValue(raw.InstanceId)),
			"Update lobot; the provider may have added a lifecycle state")
	}

	snap := cloud.Instance{
		ID:            aws.StringValue(raw.InstanceId),
		Type:          aws.StringValue(raw.InstanceType),
		State:         state,
		PublicAddress: aws.StringValue(raw.PublicIpAddress),
		KeyName:       aws.StringValue(raw.KeyName),
		ImageID:       aws.StringValue(raw.ImageId),
		LaunchTime:    aws.TimeValue(raw.LaunchTime),
	}
	if raw.Placement != nil {
		snap.Zone = aws.StringValue(raw.Placement.AvailabilityZone)
	}
	for _, tag := range raw.Tags {
		if aws.StringValue(tag.Key) == "Name" {
			snap.Name = aws.StringValue(tag.Value)
		}
	}
	return snap, nil
}

var _ cloud.ControlPlane = (*Client)(nil)
