package awscheck

import (
	"context"
	"fmt"
	"sort"
)

// Output keys exported by the infrastructure program.
const (
	OutputBucketName = "bucketName"
	OutputVpcID      = "vpcId"
)

// Leftover is a cloud resource that survived the stack's destroy.
type Leftover struct {
	Kind string
	ID   string
}

func (l Leftover) String() string { return fmt.Sprintf("%s %s", l.Kind, l.ID) }

// VerifyRemoved checks every known resource named in the stack outputs and
// returns those that still exist. Unknown output keys are ignored.
func VerifyRemoved(ctx context.Context, c *Clients, outputs map[string]interface{}) ([]Leftover, error) {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var leftovers []Leftover
	for _, k := range keys {
		id, ok := outputs[k].(string)
		if !ok || id == "" {
			continue
		}

		var (
			gone bool
			err  error
			kind string
		)
		switch k {
		case OutputBucketName:
			kind = "s3 bucket"
			gone, err = BucketGone(ctx, c.S3, id)
		case OutputVpcID:
			kind = "vpc"
			gone, err = VpcGone(ctx, c.EC2, id)
		default:
			continue
		}
		if err != nil {
			return leftovers, err
		}
		if !gone {
			leftovers = append(leftovers, Leftover{Kind: kind, ID: id})
		}
	}

	return leftovers, nil
}
