// Package infra holds the Pulumi program the Stack deploys: an S3 bucket, a
// small VPC and an IAM role that can read the bucket.
package infra

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// Exported output names.
const (
	OutputBucketName = "bucketName"
	OutputVpcID      = "vpcId"
	OutputSubnetIDs  = "subnetIds"
	OutputRoleArn    = "roleArn"
)

const defaultVpcCIDR = "10.42.0.0/16"

// ProgramArgs parameterizes the program.
type ProgramArgs struct {
	// Prefix names every resource. Defaults to the stack name.
	Prefix  string
	Region  string
	VpcCIDR string
}

// Resources are the handles Deploy creates.
type Resources struct {
	Bucket  *s3.BucketV2
	Vpc     *ec2.Vpc
	Subnets []*ec2.Subnet
	Role    *iam.Role
}

// ArgsFromConfig reads aws:region and the project's optional prefix and
// vpcCidr keys from stack configuration.
func ArgsFromConfig(ctx *pulumi.Context) ProgramArgs {
	conf := pulumiconfig.New(ctx, "")
	return ProgramArgs{
		Prefix:  conf.Get("prefix"),
		Region:  pulumiconfig.Get(ctx, "aws:region"),
		VpcCIDR: conf.Get("vpcCidr"),
	}
}

// Program returns a RunFunc that deploys the resources and exports their
// identifiers.
func Program(args ProgramArgs) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		res, err := Deploy(ctx, args)
		if err != nil {
			return err
		}

		subnetIDs := make(pulumi.StringArray, len(res.Subnets))
		for i, s := range res.Subnets {
			subnetIDs[i] = s.ID().ToStringOutput()
		}

		ctx.Export(OutputBucketName, res.Bucket.Bucket)
		ctx.Export(OutputVpcID, res.Vpc.ID())
		ctx.Export(OutputSubnetIDs, subnetIDs)
		ctx.Export(OutputRoleArn, res.Role.Arn)
		return nil
	}
}

// Deploy registers all resources with ctx.
func Deploy(ctx *pulumi.Context, args ProgramArgs) (*Resources, error) {
	prefix := args.Prefix
	if prefix == "" {
		prefix = ctx.Stack()
	}
	cidr := args.VpcCIDR
	if cidr == "" {
		cidr = defaultVpcCIDR
	}
	tags := pulumi.StringMap{
		"Project": pulumi.String(ctx.Project()),
		"Stack":   pulumi.String(ctx.Stack()),
	}

	bucket, err := newBucket(ctx, prefix, tags)
	if err != nil {
		return nil, err
	}

	vpc, subnets, err := newNetwork(ctx, prefix, args.Region, cidr, tags)
	if err != nil {
		return nil, err
	}

	role, err := newReaderRole(ctx, prefix, bucket, tags)
	if err != nil {
		return nil, err
	}

	return &Resources{Bucket: bucket, Vpc: vpc, Subnets: subnets, Role: role}, nil
}

func newBucket(ctx *pulumi.Context, prefix string, tags pulumi.StringMap) (*s3.BucketV2, error) {
	bucket, err := s3.NewBucketV2(ctx, prefix+"-bucket", &s3.BucketV2Args{
		BucketPrefix: pulumi.String(prefix + "-"),
		ForceDestroy: pulumi.Bool(true),
		Tags:         tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	_, err = s3.NewBucketVersioningV2(ctx, prefix+"-bucket-versioning", &s3.BucketVersioningV2Args{
		Bucket: bucket.ID(),
		VersioningConfiguration: &s3.BucketVersioningV2VersioningConfigurationArgs{
			Status: pulumi.String("Enabled"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enable bucket versioning: %w", err)
	}

	_, err = s3.NewBucketPublicAccessBlock(ctx, prefix+"-bucket-pab", &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to block public access: %w", err)
	}

	return bucket, nil
}

func newNetwork(ctx *pulumi.Context, prefix, region, cidr string, tags pulumi.StringMap) (*ec2.Vpc, []*ec2.Subnet, error) {
	subnetCIDRs, err := SubnetCIDRs(cidr, 2)
	if err != nil {
		return nil, nil, err
	}

	vpc, err := ec2.NewVpc(ctx, prefix+"-vpc", &ec2.VpcArgs{
		CidrBlock:          pulumi.String(cidr),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               withName(tags, prefix+"-vpc"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create VPC: %w", err)
	}

	igw, err := ec2.NewInternetGateway(ctx, prefix+"-igw", &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  withName(tags, prefix+"-igw"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}

	routeTable, err := ec2.NewRouteTable(ctx, prefix+"-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: withName(tags, prefix+"-rt-public"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create route table: %w", err)
	}

	subnets := make([]*ec2.Subnet, 0, len(subnetCIDRs))
	for i, block := range subnetCIDRs {
		name := fmt.Sprintf("%s-subnet-public-%d", prefix, i+1)
		args := &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(block),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags:                withName(tags, name),
		}
		if region != "" {
			args.AvailabilityZone = pulumi.String(fmt.Sprintf("%s%c", region, 'a'+i))
		}

		subnet, err := ec2.NewSubnet(ctx, name, args)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create subnet %d: %w", i+1, err)
		}

		_, err = ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-rta-%d", prefix, i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: routeTable.ID(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to associate route table with subnet %d: %w", i+1, err)
		}

		subnets = append(subnets, subnet)
	}

	return vpc, subnets, nil
}

func newReaderRole(ctx *pulumi.Context, prefix string, bucket *s3.BucketV2, tags pulumi.StringMap) (*iam.Role, error) {
	role, err := iam.NewRole(ctx, prefix+"-reader", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRolePolicy),
		Tags:             tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	policy := bucket.Arn.ApplyT(func(arn string) (string, error) {
		return BucketReadPolicy(arn)
	}).(pulumi.StringOutput)

	_, err = iam.NewRolePolicy(ctx, prefix+"-reader-policy", &iam.RolePolicyArgs{
		Role:   role.ID(),
		Policy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach bucket policy: %w", err)
	}

	return role, nil
}

const assumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Service": "ec2.amazonaws.com"},
    "Action": "sts:AssumeRole"
  }]
}`

// BucketReadPolicy grants list and get on the bucket.
func BucketReadPolicy(bucketArn string) (string, error) {
	doc := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{{
			"Effect":   "Allow",
			"Action":   []string{"s3:GetObject", "s3:ListBucket"},
			"Resource": []string{bucketArn, bucketArn + "/*"},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SubnetCIDRs carves count /24 blocks out of a /16, starting at x.y.1.0.
func SubnetCIDRs(vpcCIDR string, count int) ([]string, error) {
	_, network, err := net.ParseCIDR(vpcCIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid VPC CIDR %q: %w", vpcCIDR, err)
	}
	ones, _ := network.Mask.Size()
	if ones > 16 {
		return nil, fmt.Errorf("VPC CIDR %q must be /16 or larger", vpcCIDR)
	}

	base := network.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("VPC CIDR %q is not IPv4", vpcCIDR)
	}

	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%d.%d.%d.0/24", base[0], base[1], i+1)
	}
	return out, nil
}

func withName(tags pulumi.StringMap, name string) pulumi.StringMap {
	out := make(pulumi.StringMap, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	out["Name"] = pulumi.String(name)
	return out
}
