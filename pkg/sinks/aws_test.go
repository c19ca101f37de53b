package sinks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-456")}, nil
}

func TestSQSSinkSendSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	sink := &sqsSink{id: "q", typ: TypeSQS, queueURL: "https://example.com/queue", client: client, log: noopLogger{}}

	if err := sink.Send(context.Background(), Event{JobID: "job-1", Symbol: "sh600519"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["job_id"]
	if !ok || aws.ToString(attr.StringValue) != "job-1" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("job_id attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"job_id":"job-1"`) {
		t.Fatalf("MessageBody missing job_id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSSinkSendError(t *testing.T) {
	sink := &sqsSink{id: "q", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := sink.Send(context.Background(), Event{JobID: "job-1"}); err == nil {
		t.Fatalf("expected error from Send")
	}
}

func TestSNSSinkSendSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	sink := &snsSink{id: "t", typ: TypeSNS, topicARN: "arn:aws:sns:::topic", client: client, log: noopLogger{}}

	if err := sink.Send(context.Background(), Event{JobID: "job-2"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	if attr := client.input.MessageAttributes["job_id"]; aws.ToString(attr.StringValue) != "job-2" {
		t.Fatalf("job_id attribute wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"job_id":"job-2"`) {
		t.Fatalf("Message missing job_id: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSSinkSendError(t *testing.T) {
	sink := &snsSink{id: "t", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := sink.Send(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error from Send")
	}
}

func TestNewSQSSinkWithStaticCredentials(t *testing.T) {
	s, err := newSQSSink(context.Background(), SinkConfig{
		ID:   "q",
		Type: TypeSQS,
		SQS: &SQSSinkConfig{
			QueueURL: "http://localhost:4566/000000000000/results",
			AWSAccess: AWSAccess{
				Region:          "ap-east-1",
				AccessKeyID:     "test",
				SecretAccessKey: "test",
				Endpoint:        "http://localhost:4566",
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newSQSSink: %v", err)
	}
	if s.Type() != TypeSQS || s.ID() != "q" {
		t.Fatalf("unexpected sink %s/%s", s.Type(), s.ID())
	}
}
