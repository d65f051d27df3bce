// Package queryengine submits statements to Amazon Athena.
package queryengine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"lake-ingest/internal/domain"
)

// AthenaAPI is the subset of the Athena client used here.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
}

// Athena implements domain.QueryEngine. Statements are started and not awaited.
type Athena struct {
	client         AthenaAPI
	outputLocation string
}

var _ domain.QueryEngine = (*Athena)(nil)

// NewAthena creates an engine writing query results under outputLocation.
func NewAthena(client AthenaAPI, outputLocation string) *Athena {
	return &Athena{client: client, outputLocation: outputLocation}
}

// NewFromConfig builds an Athena engine from a loaded AWS config.
func NewFromConfig(cfg aws.Config, outputLocation string) *Athena {
	return NewAthena(athena.NewFromConfig(cfg), outputLocation)
}

// Run starts query against database and returns the execution ID.
func (a *Athena) Run(ctx context.Context, database, query string) (string, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(query),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(database)},
	}
	if a.outputLocation != "" {
		in.ResultConfiguration = &types.ResultConfiguration{OutputLocation: aws.String(a.outputLocation)}
	}
	out, err := a.client.StartQueryExecution(ctx, in)
	if err != nil {
		return "", fmt.Errorf("start query in %s: %w", database, err)
	}
	return aws.ToString(out.QueryExecutionId), nil
}
