package sinks

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sinks.yaml")
	content := `
sinks:
  - id: webhook
    type: HTTP
    http:
      url: " https://hooks.example.com/indicators "
      headers:
        X-Token: abc
        " ": dropped
  - id: results-queue
    type: sqs
    enabled: false
    sqs:
      uri: https://sqs.ap-east-1.amazonaws.com/123/results
      region: ap-east-1
      access_key_id: AKIA
      secret_access_key: secret
  - id: gcp
    type: pubsub
    pubsub:
      project_id: demo
      topic: indicator-results
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(reg.All()))
	}

	hook, ok := reg.ByID("webhook")
	if !ok {
		t.Fatalf("webhook not indexed")
	}
	if hook.Type != TypeHTTP || hook.HTTP.URL != "https://hooks.example.com/indicators" {
		t.Fatalf("http config not sanitized: %+v", hook.HTTP)
	}
	if hook.HTTP.Method != httpDefaultMethod || hook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http defaults not applied: %+v", hook.HTTP)
	}
	if len(hook.HTTP.Headers) != 1 {
		t.Fatalf("blank headers should be dropped: %v", hook.HTTP.Headers)
	}

	queue, _ := reg.ByID("results-queue")
	if queue.SQS.Region != "ap-east-1" || queue.SQS.AccessKeyID != "AKIA" {
		t.Fatalf("inline aws access not decoded: %+v", queue.SQS)
	}

	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled sinks, got %d", len(enabled))
	}
}

func TestValidateSinkConfig(t *testing.T) {
	cases := []SinkConfig{
		{Type: TypeHTTP},
		{ID: "a"},
		{ID: "a", Type: TypeHTTP},
		{ID: "a", Type: TypeSQS, SQS: &SQSSinkConfig{QueueURL: "q"}},
		{ID: "a", Type: TypeSNS, SNS: &SNSSinkConfig{AWSAccess: AWSAccess{Region: "r"}}},
		{ID: "a", Type: TypePubSub, PubSub: &PubSubSinkConfig{ProjectID: "p"}},
	}
	for i, cfg := range cases {
		if err := validateSinkConfig(cfg); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}
