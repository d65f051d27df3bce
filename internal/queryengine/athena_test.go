package queryengine

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAthena struct {
	in  *athena.StartQueryExecutionInput
	err error
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("exec-42")}, nil
}

func TestRun(t *testing.T) {
	fake := &fakeAthena{}
	id, err := NewAthena(fake, "s3://resources/athena/").Run(context.Background(), "trusted", "MSCK REPAIR TABLE `sales_orders`")
	require.NoError(t, err)
	assert.Equal(t, "exec-42", id)

	assert.Equal(t, "MSCK REPAIR TABLE `sales_orders`", aws.ToString(fake.in.QueryString))
	assert.Equal(t, "trusted", aws.ToString(fake.in.QueryExecutionContext.Database))
	require.NotNil(t, fake.in.ResultConfiguration)
	assert.Equal(t, "s3://resources/athena/", aws.ToString(fake.in.ResultConfiguration.OutputLocation))
}

func TestRun_NoOutputLocation(t *testing.T) {
	fake := &fakeAthena{}
	_, err := NewAthena(fake, "").Run(context.Background(), "trusted", "SELECT 1")
	require.NoError(t, err)
	assert.Nil(t, fake.in.ResultConfiguration)
}

func TestRun_Error(t *testing.T) {
	_, err := NewAthena(&fakeAthena{err: errors.New("denied")}, "").Run(context.Background(), "trusted", "SELECT 1")
	assert.ErrorContains(t, err, "denied")
}
