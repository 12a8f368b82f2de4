// Package awscheck verifies AWS credentials before a deploy and confirms the
// stack's cloud resources are gone after cleanup.
package awscheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/prereq"
)

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
}

// Clients bundles the service clients built from one aws.Config.
type Clients struct {
	STS STSAPI
	S3  S3API
	EC2 EC2API
}

// NewClients loads the AWS configuration. Static keys from cfg take priority
// over the default credential chain.
func NewClients(ctx context.Context, cfg config.Config) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.HasAWSCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSSessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		STS: sts.NewFromConfig(awsCfg),
		S3:  s3.NewFromConfig(awsCfg),
		EC2: ec2.NewFromConfig(awsCfg),
	}, nil
}

// CredentialsProbe calls GetCallerIdentity.
func CredentialsProbe(api STSAPI) prereq.Probe {
	return prereq.WithTimeout(prereq.DefaultProbeTimeout, prereq.Probe{
		Name: "aws credentials",
		Run: func(ctx context.Context) prereq.ProbeResult {
			identity, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return prereq.Failure(err.Error())
			}
			return prereq.Success(fmt.Sprintf("account %s (%s)",
				aws.ToString(identity.Account), aws.ToString(identity.Arn)))
		},
	})
}

// BucketGone reports whether the bucket no longer exists.
func BucketGone(ctx context.Context, api S3API, bucket string) (bool, error) {
	_, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return false, nil
	}

	var notFound *s3types.NotFound
	var noSuchBucket *s3types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) || hasCode(err, "NotFound", "NoSuchBucket") {
		return true, nil
	}
	return false, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
}

// VpcGone reports whether the VPC no longer exists.
func VpcGone(ctx context.Context, api EC2API, vpcID string) (bool, error) {
	out, err := api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		if hasCode(err, "InvalidVpcID.NotFound") {
			return true, nil
		}
		return false, fmt.Errorf("failed to check vpc %s: %w", vpcID, err)
	}
	return len(out.Vpcs) == 0, nil
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
