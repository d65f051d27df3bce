// Package queue sends messages to Amazon SQS.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"lake-ingest/internal/domain"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue implements domain.Queue. The queue may be given by name or URL;
// names are resolved once on first send.
type SQSQueue struct {
	client SQSAPI
	name   string

	mu  sync.Mutex
	url string
}

var _ domain.Queue = (*SQSQueue)(nil)

// NewSQSQueue creates a queue for nameOrURL.
func NewSQSQueue(client SQSAPI, nameOrURL string) *SQSQueue {
	q := &SQSQueue{client: client, name: nameOrURL}
	if strings.HasPrefix(nameOrURL, "https://") || strings.HasPrefix(nameOrURL, "http://") {
		q.url = nameOrURL
	}
	return q
}

// NewFromConfig builds a queue from a loaded AWS config.
func NewFromConfig(cfg aws.Config, nameOrURL string) *SQSQueue {
	return NewSQSQueue(sqs.NewFromConfig(cfg), nameOrURL)
}

func (q *SQSQueue) resolveURL(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.url != "" {
		return q.url, nil
	}
	if q.name == "" {
		return "", domain.ErrValidation("queue name is required")
	}
	out, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(q.name)})
	if err != nil {
		return "", fmt.Errorf("get queue URL for %s: %w", q.name, err)
	}
	q.url = aws.ToString(out.QueueUrl)
	return q.url, nil
}

// Send publishes body and returns the message ID.
func (q *SQSQueue) Send(ctx context.Context, body string) (string, error) {
	url, err := q.resolveURL(ctx)
	if err != nil {
		return "", err
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", url, err)
	}
	return aws.ToString(out.MessageId), nil
}
