package awscheck

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/prereq"
)

type fakeSTS struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.out, f.err
}

type fakeS3 struct {
	existing map[string]bool
	err      error
}

func (f fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.existing[aws.ToString(in.Bucket)] {
		return &s3.HeadBucketOutput{}, nil
	}
	return nil, &s3types.NotFound{}
}

type fakeEC2 struct {
	existing map[string]bool
	err      error
}

func (f fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range in.VpcIds {
		if f.existing[id] {
			out.Vpcs = append(out.Vpcs, ec2types.Vpc{VpcId: aws.String(id)})
		}
	}
	return out, nil
}

func TestCredentialsProbe(t *testing.T) {
	ok := fakeSTS{out: &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/demo"),
	}}
	result := CredentialsProbe(ok).Run(context.Background())
	assert.Equal(t, prereq.StatusSuccess, result.Status)
	assert.Contains(t, result.Detail, "123456789012")

	bad := fakeSTS{err: errors.New("InvalidClientTokenId")}
	result = CredentialsProbe(bad).Run(context.Background())
	assert.Equal(t, prereq.StatusFailure, result.Status)
}

func TestBucketGone(t *testing.T) {
	ctx := context.Background()
	api := fakeS3{existing: map[string]bool{"kept": true}}

	gone, err := BucketGone(ctx, api, "kept")
	require.NoError(t, err)
	assert.False(t, gone)

	gone, err = BucketGone(ctx, api, "removed")
	require.NoError(t, err)
	assert.True(t, gone)

	gone, err = BucketGone(ctx, fakeS3{err: &smithy.GenericAPIError{Code: "NoSuchBucket"}}, "x")
	require.NoError(t, err)
	assert.True(t, gone)

	_, err = BucketGone(ctx, fakeS3{err: &smithy.GenericAPIError{Code: "AccessDenied"}}, "x")
	assert.Error(t, err)
}

func TestVpcGone(t *testing.T) {
	ctx := context.Background()

	gone, err := VpcGone(ctx, fakeEC2{existing: map[string]bool{"vpc-1": true}}, "vpc-1")
	require.NoError(t, err)
	assert.False(t, gone)

	gone, err = VpcGone(ctx, fakeEC2{}, "vpc-1")
	require.NoError(t, err)
	assert.True(t, gone)

	gone, err = VpcGone(ctx, fakeEC2{err: &smithy.GenericAPIError{Code: "InvalidVpcID.NotFound"}}, "vpc-1")
	require.NoError(t, err)
	assert.True(t, gone)

	_, err = VpcGone(ctx, fakeEC2{err: errors.New("throttled")}, "vpc-1")
	assert.Error(t, err)
}

func TestVerifyRemoved(t *testing.T) {
	clients := &Clients{
		S3:  fakeS3{existing: map[string]bool{"demo-bucket": true}},
		EC2: fakeEC2{},
	}
	outputs := map[string]interface{}{
		OutputBucketName: "demo-bucket",
		OutputVpcID:      "vpc-1",
		"roleArn":        "arn:aws:iam::123456789012:role/demo",
		"subnetIds":      []interface{}{"subnet-1"},
	}

	leftovers, err := VerifyRemoved(context.Background(), clients, outputs)
	require.NoError(t, err)
	require.Len(t, leftovers, 1)
	assert.Equal(t, "s3 bucket demo-bucket", leftovers[0].String())
}

func TestVerifyRemoved_Empty(t *testing.T) {
	leftovers, err := VerifyRemoved(context.Background(), &Clients{}, nil)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestNewClients_StaticCredentials(t *testing.T) {
	cfg, err := config.Load(map[string]string{
		"AWS_ACCESS_KEY_ID":     "AKIAEXAMPLE",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_REGION":            "eu-central-1",
	})
	require.NoError(t, err)

	clients, err := NewClients(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, clients.STS)
	assert.NotNil(t, clients.S3)
	assert.NotNil(t, clients.EC2)
}
